package vm

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf16"

	"github.com/chazu/rexpr/target"
)

// ---------------------------------------------------------------------------
// Bootstrap: the core library every debuggee starts with
// ---------------------------------------------------------------------------

func (vm *VM) bootstrap() {
	vm.ObjectClass = NewClass(target.RootTypeName, nil)
	vm.Classes.Register(vm.ObjectClass)

	serializable := vm.DefineInterface("java.io.Serializable")
	comparable := vm.DefineInterface("java.lang.Comparable")
	charSequence := vm.DefineInterface("java.lang.CharSequence")
	vm.StringClass = vm.DefineClass(target.StringTypeName, nil, serializable, comparable, charSequence)

	vm.bootstrapObject()
	vm.bootstrapString()
	vm.bootstrapThrowable()
	vm.bootstrapMath()
	vm.bootstrapInteger()
}

func (vm *VM) bootstrapObject() {
	o := vm.ObjectClass
	o.AddMethod(NewMethod("toString", false, nil, vm.StringClass,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			return vm.NewString(fmt.Sprintf("%s@%x", receiver.TypeName(), receiver.Ref().ID())), nil
		}))
	o.AddMethod(NewMethod("equals", false, []target.Type{o}, target.BooleanType,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			other := args[0]
			return target.Bool(!other.IsNull() && other.Ref().ID() == receiver.Ref().ID()), nil
		}))
	o.AddMethod(NewMethod("hashCode", false, nil, target.IntType,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			return target.Int(int32(receiver.Ref().ID())), nil
		}))
}

func utf16Of(s string) []uint16 { return utf16.Encode([]rune(s)) }

func (vm *VM) bootstrapString() {
	s := vm.StringClass
	o := vm.ObjectClass

	s.AddMethod(NewMethod("length", false, nil, target.IntType,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			return target.Int(int32(len(utf16Of(receiver.Str())))), nil
		}))
	s.AddMethod(NewMethod("isEmpty", false, nil, target.BooleanType,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			return target.Bool(receiver.Str() == ""), nil
		}))
	s.AddMethod(NewMethod("charAt", false, []target.Type{target.IntType}, target.CharType,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			units := utf16Of(receiver.Str())
			i := args[0].Int64()
			if i < 0 || i >= int64(len(units)) {
				return target.Null(), vm.Throw(vm.IndexBoundsClass, fmt.Sprintf("index %d, length %d", i, len(units)))
			}
			return target.Char(units[i]), nil
		}))
	s.AddMethod(NewMethod("concat", false, []target.Type{s}, s,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			if args[0].IsNull() {
				return target.Null(), vm.Throw(vm.NullPointerClass, "")
			}
			return vm.NewString(receiver.Str() + args[0].Str()), nil
		}))
	s.AddMethod(NewMethod("equals", false, []target.Type{o}, target.BooleanType,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			other := args[0]
			return target.Bool(other.Tag() == target.TagText && other.Str() == receiver.Str()), nil
		}))
	s.AddMethod(NewMethod("compareTo", false, []target.Type{s}, target.IntType,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			if args[0].IsNull() {
				return target.Null(), vm.Throw(vm.NullPointerClass, "")
			}
			a, b := utf16Of(receiver.Str()), utf16Of(args[0].Str())
			for i := 0; i < len(a) && i < len(b); i++ {
				if a[i] != b[i] {
					return target.Int(int32(a[i]) - int32(b[i])), nil
				}
			}
			return target.Int(int32(len(a) - len(b))), nil
		}))
	s.AddMethod(NewMethod("hashCode", false, nil, target.IntType,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			var h int32
			for _, c := range utf16Of(receiver.Str()) {
				h = 31*h + int32(c)
			}
			return target.Int(h), nil
		}))
	s.AddMethod(NewMethod("toString", false, nil, s,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			return receiver, nil
		}))

	// String.valueOf overloads.
	valueOf := func(param target.Type, format func(target.Value) string) {
		s.AddMethod(NewMethod("valueOf", true, []target.Type{param}, s,
			func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
				return vm.NewString(format(args[0])), nil
			}))
	}
	valueOf(target.IntType, func(v target.Value) string { return strconv.FormatInt(v.Int64(), 10) })
	valueOf(target.LongType, func(v target.Value) string { return strconv.FormatInt(v.Int64(), 10) })
	valueOf(target.BooleanType, func(v target.Value) string { return strconv.FormatBool(v.Bool()) })
	valueOf(target.CharType, func(v target.Value) string { return string(rune(v.Char())) })
	s.AddMethod(NewMethod("valueOf", true, []target.Type{o}, s,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			if args[0].IsNull() {
				return vm.NewString("null"), nil
			}
			return vm.callVirtual(th, args[0], "toString")
		}))
	s.AddMethod(NewMethod("valueOf", true, []target.Type{vm.ArrayClass(target.CharType)}, s,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			if args[0].IsNull() {
				return target.Null(), vm.Throw(vm.NullPointerClass, "")
			}
			a := args[0].Ref().(*ArrayObject)
			a.mu.Lock()
			units := make([]uint16, len(a.elems))
			for i, e := range a.elems {
				units[i] = e.Char()
			}
			a.mu.Unlock()
			return vm.NewString(string(utf16.Decode(units))), nil
		}))
}

func (vm *VM) bootstrapMath() {
	m := vm.DefineClass("java.lang.Math", nil)
	m.AddField("PI", target.DoubleType, true).SetStatic(target.Double(math.Pi))
	m.AddField("E", target.DoubleType, true).SetStatic(target.Double(math.E))

	binary := func(name string, t target.Type, fn func(a, b target.Value) target.Value) {
		m.AddMethod(NewMethod(name, true, []target.Type{t, t}, t,
			func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
				return fn(args[0], args[1]), nil
			}))
	}
	binary("max", target.IntType, func(a, b target.Value) target.Value { return target.Int(int32(max(a.Int64(), b.Int64()))) })
	binary("max", target.LongType, func(a, b target.Value) target.Value { return target.Long(max(a.Int64(), b.Int64())) })
	binary("max", target.DoubleType, func(a, b target.Value) target.Value { return target.Double(math.Max(a.Float64(), b.Float64())) })
	binary("min", target.IntType, func(a, b target.Value) target.Value { return target.Int(int32(min(a.Int64(), b.Int64()))) })
	binary("min", target.LongType, func(a, b target.Value) target.Value { return target.Long(min(a.Int64(), b.Int64())) })
	binary("min", target.DoubleType, func(a, b target.Value) target.Value { return target.Double(math.Min(a.Float64(), b.Float64())) })

	m.AddMethod(NewMethod("abs", true, []target.Type{target.IntType}, target.IntType,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			n := int32(args[0].Int64())
			if n < 0 {
				n = -n
			}
			return target.Int(n), nil
		}))
	m.AddMethod(NewMethod("abs", true, []target.Type{target.DoubleType}, target.DoubleType,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			return target.Double(math.Abs(args[0].Float64())), nil
		}))
}

func (vm *VM) bootstrapInteger() {
	i := vm.DefineClass("java.lang.Integer", nil, vm.Classes.Lookup("java.io.Serializable"))
	i.AddField("MAX_VALUE", target.IntType, true).SetStatic(target.Int(math.MaxInt32))
	i.AddField("MIN_VALUE", target.IntType, true).SetStatic(target.Int(math.MinInt32))

	i.AddMethod(NewMethod("parseInt", true, []target.Type{vm.StringClass}, target.IntType,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			if args[0].IsNull() {
				return target.Null(), vm.Throw(vm.Classes.Lookup("java.lang.NumberFormatException"), "null")
			}
			n, err := strconv.ParseInt(args[0].Str(), 10, 32)
			if err != nil {
				return target.Null(), vm.Throw(vm.Classes.Lookup("java.lang.NumberFormatException"),
					fmt.Sprintf("For input string: %q", args[0].Str()))
			}
			return target.Int(int32(n)), nil
		}))
	i.AddMethod(NewMethod("toString", true, []target.Type{target.IntType}, vm.StringClass,
		func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			return vm.NewString(strconv.FormatInt(args[0].Int64(), 10)), nil
		}))
}
