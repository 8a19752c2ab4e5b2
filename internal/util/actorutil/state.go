package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorWithStates runs one named state at a time. The name of the active
// state is kept for logging.
type ActorWithStates struct {
	Behavior actor.Behavior
	current  string
}

type ActorState interface {
	Name() string
	Receive(actor.Context)
}

func (s *ActorWithStates) Become(state ActorState) {
	s.current = state.Name()
	s.Behavior.Become(state.Receive)
}

func (s *ActorWithStates) StateName() string {
	return s.current
}
