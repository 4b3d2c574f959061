package vm

import (
	"sort"
	"sync"

	"github.com/chazu/rexpr/target"
)

// ---------------------------------------------------------------------------
// Class: reference types of the debuggee
// ---------------------------------------------------------------------------

// Class is a class, interface or array type loaded in the debuggee. It
// implements target.Type.
type Class struct {
	name       string
	kind       target.Kind
	Superclass *Class      // nil for the root class, interfaces and arrays
	Interfaces []*Class    // directly implemented (or extended) interfaces
	Component  target.Type // element type, arrays only
	Fields     []*Field    // declared fields
	Methods    []*Method   // declared methods
	prepared   bool
}

// Name returns the fully qualified class name.
func (c *Class) Name() string { return c.name }

// Kind reports whether c is a class, interface or array.
func (c *Class) Kind() target.Kind { return c.kind }

// Prepared reports whether the class has been prepared. Unprepared classes
// refuse every structural query.
func (c *Class) Prepared() bool { return c.prepared }

// String implements the Stringer interface.
func (c *Class) String() string { return c.name }

// NewClass creates a prepared class with the given name and superclass.
func NewClass(name string, superclass *Class, interfaces ...*Class) *Class {
	return &Class{
		name:       name,
		kind:       target.KindClass,
		Superclass: superclass,
		Interfaces: interfaces,
		prepared:   true,
	}
}

// NewInterface creates a prepared interface extending the given interfaces.
func NewInterface(name string, extends ...*Class) *Class {
	return &Class{
		name:       name,
		kind:       target.KindInterface,
		Interfaces: extends,
		prepared:   true,
	}
}

// NewArrayClass creates the array type with the given component type.
// Arrays extend the root class and implement nothing else here.
func NewArrayClass(component target.Type, root *Class) *Class {
	return &Class{
		name:       component.Name() + "[]",
		kind:       target.KindArray,
		Superclass: root,
		Component:  component,
		prepared:   true,
	}
}

// Unprepare marks c as not yet prepared.
func (c *Class) Unprepare() { c.prepared = false }

// ---------------------------------------------------------------------------
// Class hierarchy helpers
// ---------------------------------------------------------------------------

// IsSubclassOf returns true if c is a subclass of other (or is the same class).
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.Superclass {
		if current == other {
			return true
		}
	}
	return false
}

// Implements reports whether c, a superclass of c, or any interface they
// extend is iface.
func (c *Class) Implements(iface *Class) bool {
	for current := c; current != nil; current = current.Superclass {
		for _, i := range current.Interfaces {
			if i == iface || i.Implements(iface) {
				return true
			}
		}
	}
	return false
}

// Superclasses returns all superclasses from immediate parent to root.
func (c *Class) Superclasses() []*Class {
	var result []*Class
	for current := c.Superclass; current != nil; current = current.Superclass {
		result = append(result, current)
	}
	return result
}

// Depth returns the inheritance depth (0 for root class).
func (c *Class) Depth() int {
	depth := 0
	for current := c.Superclass; current != nil; current = current.Superclass {
		depth++
	}
	return depth
}

// AddField declares a field on c.
func (c *Class) AddField(name string, typ target.Type, static bool) *Field {
	f := &Field{name: name, typ: typ, declaring: c, static: static, value: zeroValue(typ)}
	c.Fields = append(c.Fields, f)
	return f
}

// AddMethod declares a method on c.
func (c *Class) AddMethod(m *Method) *Method {
	m.declaring = c
	c.Methods = append(c.Methods, m)
	return m
}

// LookupField finds the field visible on c with the given name: declared
// fields shadow inherited ones, superclasses come before interfaces.
func (c *Class) LookupField(name string) *Field {
	for current := c; current != nil; current = current.Superclass {
		for _, f := range current.Fields {
			if f.name == name {
				return f
			}
		}
		for _, i := range current.Interfaces {
			if f := i.LookupField(name); f != nil {
				return f
			}
		}
	}
	return nil
}

// AllFields returns the instance fields of c, inherited ones first.
func (c *Class) AllFields() []*Field {
	var chain []*Class
	for current := c; current != nil; current = current.Superclass {
		chain = append(chain, current)
	}
	var result []*Field
	for i := len(chain) - 1; i >= 0; i-- {
		for _, f := range chain[i].Fields {
			if !f.static {
				result = append(result, f)
			}
		}
	}
	return result
}

// LookupMethods returns every method named name visible on c. A method
// overridden by a subclass (same parameter types) is hidden.
func (c *Class) LookupMethods(name string) []*Method {
	var result []*Method
	seen := make(map[string]bool)
	var visit func(*Class)
	visit = func(cls *Class) {
		for _, m := range cls.Methods {
			if m.name != name {
				continue
			}
			key := m.paramKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			result = append(result, m)
		}
	}
	for current := c; current != nil; current = current.Superclass {
		visit(current)
	}
	// Interface methods not implemented by any class on the chain.
	var visitIfaces func(*Class)
	visitIfaces = func(cls *Class) {
		for _, i := range cls.Interfaces {
			visit(i)
			visitIfaces(i)
		}
	}
	for current := c; current != nil; current = current.Superclass {
		visitIfaces(current)
	}
	return result
}

// ---------------------------------------------------------------------------
// ClassTable: loaded class registry
// ---------------------------------------------------------------------------

// ClassTable manages loaded classes by name.
// It's thread-safe for concurrent access.
type ClassTable struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewClassTable creates a new empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{
		classes: make(map[string]*Class),
	}
}

// Register adds a class to the table.
// Returns the previous class with this name, or nil.
func (ct *ClassTable) Register(c *Class) *Class {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	old := ct.classes[c.name]
	ct.classes[c.name] = c
	return old
}

// Lookup finds a class by name.
func (ct *ClassTable) Lookup(name string) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.classes[name]
}

// Has returns true if a class with this name is registered.
func (ct *ClassTable) Has(name string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.classes[name]
	return ok
}

// All returns all registered classes sorted by name.
func (ct *ClassTable) All() []*Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	result := make([]*Class, 0, len(ct.classes))
	for _, c := range ct.classes {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].name < result[j].name })
	return result
}

// Len returns the number of registered classes.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.classes)
}
