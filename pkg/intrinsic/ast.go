package intrinsic

// Expr is the tagged-variant interface implemented by every AST node.
// Evaluation is a tree-walking visitor over these nodes (see
// interpreter.go); there is deliberately no separate Visitor interface
// per node — interpreter.eval type-switches on the concrete type.
type Expr interface {
	exprNode()
}

// Literal is a constant value: a string or an arbitrary-precision
// decimal (decimal.Decimal).
type Literal struct {
	Value interface{}
}

// Variable is either a JSONPath reference (Name.Lexeme starts with
// "$") or a dotted built-in name (e.g. "States.Format").
type Variable struct {
	Name Token
}

// Unary is a prefix operator application; only "-" is supported.
type Unary struct {
	Op    Token
	Right Expr
}

// Binary is an infix operator application: "+", "-", "*", "/".
type Binary struct {
	Left  Expr
	Op    Token
	Right Expr
}

// Grouping is a parenthesized sub-expression.
type Grouping struct {
	Inner Expr
}

// Call invokes Callee (resolved to a Callable at eval time) with
// Arguments evaluated left-to-right.
type Call struct {
	Callee    Expr
	Paren     Token
	Arguments []Expr
}

// ExprStmt is a top-level statement; the grammar's program is a list
// of these, though in practice an intrinsic-function source string is
// always exactly one expression statement.
type ExprStmt struct {
	Expr Expr
}

func (*Literal) exprNode()  {}
func (*Variable) exprNode() {}
func (*Unary) exprNode()    {}
func (*Binary) exprNode()   {}
func (*Grouping) exprNode() {}
func (*Call) exprNode()     {}
func (*ExprStmt) exprNode() {}
