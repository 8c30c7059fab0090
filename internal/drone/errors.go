package drone

import "errors"

// ResponseOK is the reply to an accepted command. Rejections reply with the
// Error() text of the errors below.
const ResponseOK = "ok"

var (
	// ErrMotorStop rejects movement while the drone is not airborne.
	ErrMotorStop = errors.New("error Motor stop")
	// ErrNotFlying rejects a flip before takeoff.
	ErrNotFlying = errors.New("take off first")
	// ErrUnpowered rejects any command other than start while powered off.
	ErrUnpowered = errors.New("error")
	// ErrInvalidArgument rejects a malformed or out of range argument.
	ErrInvalidArgument = errors.New("error")

	// errNoReply marks commands that must never be answered.
	errNoReply = errors.New("no reply")
)

// UnknownCommandError is returned for verbs the simulator does not implement.
type UnknownCommandError struct {
	Verb string
}

func (e *UnknownCommandError) Error() string {
	return "unknown command: " + e.Verb
}
