package nodeflow

import "sort"

// Outputs maps output socket names to the values an executor produced. A
// missing key means that socket did not fire; a key holding nil fired without
// a value.
type Outputs map[string]any

// Fired reports whether the socket is present in the result.
func (o Outputs) Fired(socket string) bool {
	if o == nil {
		return false
	}
	_, ok := o[socket]
	return ok
}

// Sockets returns the fired socket names in a stable order.
func (o Outputs) Sockets() []string {
	if len(o) == 0 {
		return nil
	}
	names := make([]string, 0, len(o))
	for name := range o {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Signal builds a result that fires a single signal socket.
func Signal(socket string) Outputs {
	return Outputs{socket: true}
}
