package expr

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Expression tree
// ---------------------------------------------------------------------------

// Kind identifies a node form.
type Kind string

const (
	KindLiteral Kind = "literal" // Literal names the sub-kind, Text the source text
	KindName    Kind = "name"    // identifier Name: local variable, then field of this
	KindThis    Kind = "this"
	KindField   Kind = "field"   // Children[0].Name
	KindStatic  Kind = "static"  // Text.Name, Text is a type name
	KindIndex   Kind = "index"   // Children[0][Children[1]]
	KindCall    Kind = "call"    // see Node
	KindUnary   Kind = "unary"   // Op Children[0]
	KindBinary  Kind = "binary"  // Children[0] Op Children[1]
	KindAssign  Kind = "assign"  // Children[0] Op Children[1], Op is = or a compound form
	KindTernary Kind = "ternary" // Children[0] ? Children[1] : Children[2]
	KindHandle  Kind = "handle"  // a value pinned by a previous evaluation, Name is its id
)

// Literal sub-kinds.
const (
	LitBool   = "bool"
	LitInt    = "int"
	LitFloat  = "float"
	LitChar   = "char"
	LitString = "string"
	LitNull   = "null"
)

// Node is one node of an expression tree as produced by the expression
// grammar. Calls name the method in Name; with Text set they are static
// calls on that type and every child is an argument, otherwise Children[0]
// is the receiver (nil for an implicit this) and the rest are arguments.
type Node struct {
	Kind     Kind    `json:"kind" cbor:"kind"`
	Literal  string  `json:"literal,omitempty" cbor:"literal,omitempty"`
	Text     string  `json:"text,omitempty" cbor:"text,omitempty"`
	Op       string  `json:"op,omitempty" cbor:"op,omitempty"`
	Name     string  `json:"name,omitempty" cbor:"name,omitempty"`
	Children []*Node `json:"children,omitempty" cbor:"children,omitempty"`
}

// --- Constructors ---

func Lit(kind, text string) *Node        { return &Node{Kind: KindLiteral, Literal: kind, Text: text} }
func Ident(name string) *Node            { return &Node{Kind: KindName, Name: name} }
func This() *Node                        { return &Node{Kind: KindThis} }
func Handle(id string) *Node             { return &Node{Kind: KindHandle, Name: id} }
func Static(typeName, name string) *Node { return &Node{Kind: KindStatic, Text: typeName, Name: name} }

func Field(obj *Node, name string) *Node {
	return &Node{Kind: KindField, Name: name, Children: []*Node{obj}}
}

func Index(array, index *Node) *Node {
	return &Node{Kind: KindIndex, Children: []*Node{array, index}}
}

func Unary(op string, operand *Node) *Node {
	return &Node{Kind: KindUnary, Op: op, Children: []*Node{operand}}
}

func Binary(op string, left, right *Node) *Node {
	return &Node{Kind: KindBinary, Op: op, Children: []*Node{left, right}}
}

func Assign(op string, left, right *Node) *Node {
	return &Node{Kind: KindAssign, Op: op, Children: []*Node{left, right}}
}

func Ternary(test, a, b *Node) *Node {
	return &Node{Kind: KindTernary, Children: []*Node{test, a, b}}
}

// Call builds receiver.name(args...). A nil receiver calls on this.
func Call(receiver *Node, name string, args ...*Node) *Node {
	return &Node{Kind: KindCall, Name: name, Children: append([]*Node{receiver}, args...)}
}

// StaticCall builds typeName.name(args...).
func StaticCall(typeName, name string, args ...*Node) *Node {
	return &Node{Kind: KindCall, Text: typeName, Name: name, Children: args}
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("expr: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ParseJSON decodes a node tree from JSON.
func ParseJSON(data []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("expr: unmarshal json: %w", err)
	}
	return &n, nil
}

// MarshalCBOR serializes a node tree to canonical CBOR.
func MarshalCBOR(n *Node) ([]byte, error) {
	return cborEncMode.Marshal(n)
}

// UnmarshalCBOR deserializes a node tree from CBOR.
func UnmarshalCBOR(data []byte) (*Node, error) {
	var n Node
	if err := cbor.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("expr: unmarshal cbor: %w", err)
	}
	return &n, nil
}

// ---------------------------------------------------------------------------
// Source form
// ---------------------------------------------------------------------------

// String renders the tree in source form, fully parenthesized.
func (n *Node) String() string {
	if n == nil {
		return "this"
	}
	switch n.Kind {
	case KindLiteral:
		if n.Literal == LitNull {
			return "null"
		}
		return n.Text
	case KindName:
		return n.Name
	case KindThis:
		return "this"
	case KindHandle:
		return "$" + n.Name
	case KindStatic:
		return n.Text + "." + n.Name
	case KindField:
		return n.child(0).String() + "." + n.Name
	case KindIndex:
		return n.child(0).String() + "[" + n.child(1).String() + "]"
	case KindUnary:
		return n.Op + n.child(0).String()
	case KindBinary, KindAssign:
		return "(" + n.child(0).String() + " " + n.Op + " " + n.child(1).String() + ")"
	case KindTernary:
		return "(" + n.child(0).String() + " ? " + n.child(1).String() + " : " + n.child(2).String() + ")"
	case KindCall:
		args := n.Children
		var recv string
		if n.Text != "" {
			recv = n.Text
		} else if len(args) > 0 {
			recv, args = args[0].String(), args[1:]
		}
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.String()
		}
		return recv + "." + n.Name + "(" + strings.Join(parts, ", ") + ")"
	}
	return "<" + string(n.Kind) + ">"
}

func (n *Node) child(i int) *Node {
	if i < len(n.Children) {
		return n.Children[i]
	}
	return nil
}
