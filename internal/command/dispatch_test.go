package command

import "testing"

type fakeHandler struct {
	accepts func(Command) bool
	offered []Command
}

func (f *fakeHandler) Offer(cmd Command, respond func(Response)) bool {
	if !f.accepts(cmd) {
		return false
	}
	f.offered = append(f.offered, cmd)
	respond(Success(cmd.Name, nil))
	return true
}

func TestDispatchFirstAcceptingHandlerWins(t *testing.T) {
	d := NewDispatcher()

	first := &fakeHandler{accepts: func(c Command) bool { return c.Name == "gettime" }}
	second := &fakeHandler{accepts: func(c Command) bool { return true }} // would accept anything

	d.Register(first)
	d.Register(second)

	var got Response
	accepted := d.Dispatch(Command{Name: "gettime"}, func(r Response) { got = r })

	if !accepted {
		t.Fatal("expected the command to be accepted")
	}
	if len(first.offered) != 1 {
		t.Errorf("first handler offered %d times, want 1", len(first.offered))
	}
	if len(second.offered) != 0 {
		t.Errorf("second handler should never have been offered the command")
	}
	if got.Result != ResultSuccess {
		t.Errorf("Result = %q, want %q", got.Result, ResultSuccess)
	}
}

func TestDispatchReportsUnrecognizedCommand(t *testing.T) {
	d := NewDispatcher()
	d.Register(&fakeHandler{accepts: func(Command) bool { return false }})

	accepted := d.Dispatch(Command{Name: "bogus"}, func(Response) {})
	if accepted {
		t.Error("expected no handler to accept an unrecognized command")
	}
}
