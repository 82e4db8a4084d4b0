package command

// Handler is a registered command acceptor. Offer is called with every
// parsed command, in registration order.
type Handler interface {
	// Offer inspects cmd and, if this handler recognizes cmd.Name,
	// enqueues it on the handler's own worker queue and returns true.
	// respond delivers the eventual Response back to the originating
	// connection; it is safe to call from any goroutine, at any point
	// after Offer returns, including well after the command server has
	// moved on to other connections.
	Offer(cmd Command, respond func(Response)) bool
}

// Dispatcher holds the ordered set of registered Handlers. Per spec.md
// §4.4, exactly one handler is expected to accept any given command
// name; if more than one would accept it, the first registered wins.
type Dispatcher struct {
	handlers []Handler
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds h to the end of the handler list.
func (d *Dispatcher) Register(h Handler) {
	d.handlers = append(d.handlers, h)
}

// Dispatch offers cmd to each handler in registration order, stopping at
// the first one that accepts it, and reports whether any handler did.
func (d *Dispatcher) Dispatch(cmd Command, respond func(Response)) bool {
	for _, h := range d.handlers {
		if h.Offer(cmd, respond) {
			return true
		}
	}
	return false
}
