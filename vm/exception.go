package vm

import (
	"fmt"

	"github.com/chazu/rexpr/target"
)

// ---------------------------------------------------------------------------
// Exceptions thrown inside the debuggee
// ---------------------------------------------------------------------------

// Thrown is returned by a NativeFunc whose method completes by throwing
// Exception. The bridge reports it to callers as a target.InvocationError.
type Thrown struct {
	Exception target.Value
	Message   string
}

func (t *Thrown) Error() string {
	if t.Message == "" {
		return fmt.Sprintf("%s thrown", t.Exception.TypeName())
	}
	return fmt.Sprintf("%s thrown: %s", t.Exception.TypeName(), t.Message)
}

// Throw allocates an instance of the throwable class with the given message
// and returns it as a *Thrown error.
func (vm *VM) Throw(class *Class, message string) error {
	ex := vm.NewObject(class)
	if message != "" {
		if f := class.LookupField("message"); f != nil {
			ex.Set(f, vm.NewString(message))
		}
	}
	log.Debugf("throwing %s: %s", class.Name(), message)
	return &Thrown{Exception: target.Object(ex), Message: message}
}

func (vm *VM) bootstrapThrowable() {
	serializable := vm.Classes.Lookup("java.io.Serializable")
	vm.ThrowableClass = vm.DefineClass("java.lang.Throwable", nil, serializable)
	exception := vm.DefineClass("java.lang.Exception", vm.ThrowableClass)
	vm.RuntimeErrorClass = vm.DefineClass("java.lang.RuntimeException", exception)
	vm.ArithmeticClass = vm.DefineClass("java.lang.ArithmeticException", vm.RuntimeErrorClass)
	vm.NullPointerClass = vm.DefineClass("java.lang.NullPointerException", vm.RuntimeErrorClass)
	vm.IndexBoundsClass = vm.DefineClass("java.lang.IndexOutOfBoundsException", vm.RuntimeErrorClass)
	vm.IllegalArgClass = vm.DefineClass("java.lang.IllegalArgumentException", vm.RuntimeErrorClass)
	vm.DefineClass("java.lang.NumberFormatException", vm.IllegalArgClass)

	t := vm.ThrowableClass
	message := t.AddField("message", vm.StringClass, false)

	t.AddMethod(NewMethod("getMessage", false, nil, vm.StringClass,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			return receiver.Ref().(*Object).Get(message), nil
		}))
	t.AddMethod(NewMethod("toString", false, nil, vm.StringClass,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			msg := receiver.Ref().(*Object).Get(message)
			if msg.IsNull() {
				return vm.NewString(receiver.TypeName()), nil
			}
			return vm.NewString(receiver.TypeName() + ": " + msg.Str()), nil
		}))
}
