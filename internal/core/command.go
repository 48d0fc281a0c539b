package core

// CommandType defines the type of command being dispatched to the agent.
type CommandType string

const (
	// CmdSetLight sends Params straight through the gateway.
	CmdSetLight CommandType = "setLight"
	// CmdUpdateLight hands Params to the throttled update worker.
	CmdUpdateLight  CommandType = "updateLight"
	CmdRunPattern   CommandType = "runPattern"
	CmdStopPattern  CommandType = "stopPattern"
	CmdCaptureState CommandType = "captureState"
	CmdRestoreState CommandType = "restoreState"
	CmdClearCache   CommandType = "clearCache"
)

// Command is the envelope for requests to the agent's orchestration loop.
type Command struct {
	Type   CommandType
	Lights []int
	Params Set
	Name   string
}

// CommandChannel is the single channel the agent listens to for commands.
type CommandChannel chan Command
