package pyobj

// Namespace is an insertion-ordered name to getter table. Rebinding a name
// keeps its original position.
type Namespace struct {
	order   []string
	getters map[string]Getter
}

func NewNamespace() *Namespace {
	return &Namespace{getters: make(map[string]Getter)}
}

func (n *Namespace) Set(name string, g Getter) {
	if _, ok := n.getters[name]; !ok {
		n.order = append(n.order, name)
	}
	n.getters[name] = g
}

func (n *Namespace) Lookup(name string) (Getter, bool) {
	g, ok := n.getters[name]
	return g, ok
}

func (n *Namespace) Names() []string {
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// Delete unbinds name.
func (n *Namespace) Delete(name string) {
	if _, ok := n.getters[name]; !ok {
		return
	}
	delete(n.getters, name)
	for i, o := range n.order {
		if o == name {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}
