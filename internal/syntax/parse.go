package syntax

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/tools/go/ast/inspector"

	"github.com/ajroetker/loopjit/internal/failure"
)

// implicitPackage is prepended to sources that omit a package clause. It is
// kept on the first line so reported line numbers match the caller's text.
const implicitPackage = "package routine; "

// File is a parsed Go source file holding candidate routines.
type File struct {
	fset  *token.FileSet
	file  *ast.File
	funcs []*ast.FuncDecl
}

// ParseFile parses src as Go source. A missing package clause is tolerated
// so a bare function declaration is accepted.
func ParseFile(filename string, src []byte) (*File, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		prefixed := append([]byte(implicitPackage), src...)
		fset = token.NewFileSet()
		var perr error
		f, perr = parser.ParseFile(fset, filename, prefixed, parser.SkipObjectResolution)
		if perr != nil {
			return nil, failure.Wrap(failure.Unsupported, "parse", err)
		}
	}

	pf := &File{fset: fset, file: f}
	insp := inspector.New([]*ast.File{f})
	insp.Preorder([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node) {
		pf.funcs = append(pf.funcs, n.(*ast.FuncDecl))
	})
	if len(pf.funcs) == 0 {
		return nil, failure.Unsupportedf("%s: no function declarations", filename)
	}
	return pf, nil
}

// FuncNames lists the file's top-level functions in source order.
func (f *File) FuncNames() []string {
	return lo.Map(f.funcs, func(fd *ast.FuncDecl, _ int) string { return fd.Name.Name })
}

// Func narrows the named function to the closed grammar. An empty name
// selects the file's only function.
func (f *File) Func(name string) (*FuncDef, error) {
	fd, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	c := &converter{fset: f.fset}
	return c.funcDef(fd, true)
}

// Header converts only the signature of the named function. The body is
// left nil and is not checked.
func (f *File) Header(name string) (*FuncDef, error) {
	fd, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	c := &converter{fset: f.fset}
	return c.funcDef(fd, false)
}

// Module converts every function of the file.
func (f *File) Module() (*Module, error) {
	m := &Module{Position: f.fset.Position(f.file.Package)}
	c := &converter{fset: f.fset}
	for _, fd := range f.funcs {
		def, err := c.funcDef(fd, true)
		if err != nil {
			return nil, err
		}
		m.Funcs = append(m.Funcs, def)
	}
	return m, nil
}

func (f *File) lookup(name string) (*ast.FuncDecl, error) {
	if name == "" {
		if len(f.funcs) != 1 {
			return nil, fmt.Errorf("file declares %d functions; name one of %s",
				len(f.funcs), strings.Join(f.FuncNames(), ", "))
		}
		return f.funcs[0], nil
	}
	fd, ok := lo.Find(f.funcs, func(fd *ast.FuncDecl) bool { return fd.Name.Name == name })
	if !ok {
		return nil, fmt.Errorf("function %q not found", name)
	}
	return fd, nil
}

// Parse is a shorthand for ParseFile followed by Func.
func Parse(filename string, src []byte, name string) (*FuncDef, error) {
	f, err := ParseFile(filename, src)
	if err != nil {
		return nil, err
	}
	return f.Func(name)
}

// ErrNotBound reports a loop bound that is neither a name nor an integer
// literal.
var ErrNotBound = errors.New("loop bound must be a name or an integer literal")

// converter maps go/ast nodes onto the closed grammar.
type converter struct {
	fset *token.FileSet
}

func (c *converter) pos(n ast.Node) token.Position { return c.fset.Position(n.Pos()) }

func (c *converter) unsupported(n ast.Node, format string, args ...any) error {
	return failure.Unsupportedf("%s: %s", c.pos(n), fmt.Sprintf(format, args...))
}

func (c *converter) funcDef(fd *ast.FuncDecl, withBody bool) (*FuncDef, error) {
	if fd.Recv != nil {
		return nil, c.unsupported(fd, "method %s", fd.Name.Name)
	}
	if fd.Type.TypeParams != nil && len(fd.Type.TypeParams.List) > 0 {
		return nil, c.unsupported(fd, "type parameters on %s", fd.Name.Name)
	}
	def := &FuncDef{Position: c.pos(fd), Name: fd.Name.Name}

	for _, field := range fd.Type.Params.List {
		typ, err := c.typeName(field.Type)
		if err != nil {
			return nil, err
		}
		if len(field.Names) == 0 {
			return nil, c.unsupported(field, "unnamed parameter")
		}
		for _, n := range field.Names {
			def.Params = append(def.Params, Param{Name: n.Name, Type: typ})
		}
	}

	res := fd.Type.Results
	if res == nil || len(res.List) != 1 || len(res.List[0].Names) > 1 {
		return nil, c.unsupported(fd, "%s must return exactly one value", fd.Name.Name)
	}
	if len(res.List[0].Names) == 1 {
		return nil, c.unsupported(res.List[0], "named result")
	}
	typ, err := c.typeName(res.List[0].Type)
	if err != nil {
		return nil, err
	}
	def.Result = typ

	if !withBody {
		return def, nil
	}
	if fd.Body == nil {
		return nil, c.unsupported(fd, "%s has no body", fd.Name.Name)
	}
	if def.Body, err = c.stmts(fd.Body.List); err != nil {
		return nil, err
	}
	return def, nil
}

// typeName accepts a bare identifier. Whether the name is in the type
// table is decided by the translator.
func (c *converter) typeName(e ast.Expr) (string, error) {
	switch t := e.(type) {
	case *ast.Ident:
		return t.Name, nil
	case *ast.Ellipsis:
		return "", c.unsupported(e, "variadic parameter")
	}
	return "", c.unsupported(e, "type expression %T", e)
}

func (c *converter) stmts(list []ast.Stmt) ([]Stmt, error) {
	out := make([]Stmt, 0, len(list))
	for _, s := range list {
		st, err := c.stmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (c *converter) stmt(s ast.Stmt) (Stmt, error) {
	switch s := s.(type) {
	case *ast.DeclStmt:
		return c.localDecl(s)
	case *ast.AssignStmt:
		return c.augAssign(s)
	case *ast.ForStmt:
		return c.forLoop(s)
	case *ast.RangeStmt:
		return c.rangeLoop(s)
	case *ast.ReturnStmt:
		if len(s.Results) != 1 {
			return nil, c.unsupported(s, "return must have exactly one value")
		}
		v, err := c.expr(s.Results[0])
		if err != nil {
			return nil, err
		}
		return &Return{Position: c.pos(s), Value: v}, nil
	}
	return nil, c.unsupported(s, "statement %T", s)
}

func (c *converter) localDecl(s *ast.DeclStmt) (Stmt, error) {
	gd, ok := s.Decl.(*ast.GenDecl)
	if !ok || gd.Tok != token.VAR || len(gd.Specs) != 1 {
		return nil, c.unsupported(s, "declaration must be a single var")
	}
	vs := gd.Specs[0].(*ast.ValueSpec)
	if len(vs.Names) != 1 {
		return nil, c.unsupported(s, "declaration must name one variable")
	}
	if vs.Type == nil {
		return nil, c.unsupported(s, "declaration of %s needs an explicit type", vs.Names[0].Name)
	}
	if len(vs.Values) != 1 {
		return nil, c.unsupported(s, "declaration of %s needs one initializer", vs.Names[0].Name)
	}
	typ, err := c.typeName(vs.Type)
	if err != nil {
		return nil, err
	}
	v, err := c.expr(vs.Values[0])
	if err != nil {
		return nil, err
	}
	return &LocalDecl{Position: c.pos(s), Name: vs.Names[0].Name, Type: typ, Value: v}, nil
}

var augOps = map[token.Token]Op{
	token.ADD_ASSIGN: Add,
	token.MUL_ASSIGN: Mul,
	token.QUO_ASSIGN: Div,
}

func (c *converter) augAssign(s *ast.AssignStmt) (Stmt, error) {
	op, ok := augOps[s.Tok]
	if !ok {
		return nil, c.unsupported(s, "assignment %s", s.Tok)
	}
	if len(s.Lhs) != 1 || len(s.Rhs) != 1 {
		return nil, c.unsupported(s, "augmented assignment must have one target and one value")
	}
	target, ok := s.Lhs[0].(*ast.Ident)
	if !ok {
		return nil, c.unsupported(s.Lhs[0], "augmented assignment target must be a name")
	}
	value, ok := ast.Unparen(s.Rhs[0]).(*ast.Ident)
	if !ok {
		return nil, c.unsupported(s.Rhs[0], "augmented assignment value must be a name")
	}
	return &AugAssign{
		Position: c.pos(s),
		Target:   target.Name,
		Op:       op,
		Value:    &Name{Position: c.pos(value), Name: value.Name},
	}, nil
}

// forLoop accepts exactly: for v := lo; v < hi; v++ { ... }
func (c *converter) forLoop(s *ast.ForStmt) (Stmt, error) {
	bad := func() (Stmt, error) {
		return nil, c.unsupported(s, "only `for i := lo; i < hi; i++` loops are supported")
	}
	init, ok := s.Init.(*ast.AssignStmt)
	if !ok || init.Tok != token.DEFINE || len(init.Lhs) != 1 || len(init.Rhs) != 1 {
		return bad()
	}
	v, ok := init.Lhs[0].(*ast.Ident)
	if !ok {
		return bad()
	}
	cond, ok := ast.Unparen(s.Cond).(*ast.BinaryExpr)
	if !ok || cond.Op != token.LSS || !isIdent(cond.X, v.Name) {
		return bad()
	}
	post, ok := s.Post.(*ast.IncDecStmt)
	if !ok || post.Tok != token.INC || !isIdent(post.X, v.Name) {
		return bad()
	}
	lower, err := c.bound(init.Rhs[0])
	if err != nil {
		return nil, err
	}
	upper, err := c.bound(cond.Y)
	if err != nil {
		return nil, err
	}
	body, err := c.stmts(s.Body.List)
	if err != nil {
		return nil, err
	}
	return &RangeLoop{Position: c.pos(s), Var: v.Name, Lower: lower, Upper: upper, Body: body}, nil
}

// rangeLoop accepts: for v := range hi { ... }, iterating from zero.
func (c *converter) rangeLoop(s *ast.RangeStmt) (Stmt, error) {
	v, ok := s.Key.(*ast.Ident)
	if !ok || s.Value != nil || s.Tok != token.DEFINE {
		return nil, c.unsupported(s, "only `for i := range n` over an integer is supported")
	}
	upper, err := c.bound(s.X)
	if err != nil {
		return nil, err
	}
	body, err := c.stmts(s.Body.List)
	if err != nil {
		return nil, err
	}
	return &RangeLoop{
		Position: c.pos(s),
		Var:      v.Name,
		Lower:    &Literal{Position: c.pos(s.X), Kind: IntLit},
		Upper:    upper,
		Body:     body,
	}, nil
}

func (c *converter) bound(e ast.Expr) (Expr, error) {
	x, err := c.expr(e)
	if err != nil {
		return nil, err
	}
	switch b := x.(type) {
	case *Name:
		return b, nil
	case *Literal:
		if b.Kind == IntLit {
			return b, nil
		}
	}
	return nil, failure.Wrap(failure.Unsupported, c.pos(e).String(), ErrNotBound)
}

var binOps = map[token.Token]Op{
	token.ADD: Add,
	token.MUL: Mul,
	token.QUO: Div,
}

func (c *converter) expr(e ast.Expr) (Expr, error) {
	switch e := e.(type) {
	case *ast.ParenExpr:
		return c.expr(e.X)
	case *ast.Ident:
		return &Name{Position: c.pos(e), Name: e.Name}, nil
	case *ast.BasicLit:
		return c.literal(e, false)
	case *ast.UnaryExpr:
		lit, ok := ast.Unparen(e.X).(*ast.BasicLit)
		if !ok || (e.Op != token.SUB && e.Op != token.ADD) {
			return nil, c.unsupported(e, "unary %s", e.Op)
		}
		return c.literal(lit, e.Op == token.SUB)
	case *ast.BinaryExpr:
		op, ok := binOps[e.Op]
		if !ok {
			return nil, c.unsupported(e, "operator %s", e.Op)
		}
		x, err := c.expr(e.X)
		if err != nil {
			return nil, err
		}
		y, err := c.expr(e.Y)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Position: c.pos(e), Op: op, X: x, Y: y}, nil
	}
	return nil, c.unsupported(e, "expression %T", e)
}

func (c *converter) literal(lit *ast.BasicLit, neg bool) (Expr, error) {
	switch lit.Kind {
	case token.INT:
		// The sign is parsed with the digits so the most negative int64,
		// whose magnitude alone overflows, is accepted.
		text := lit.Value
		if neg {
			text = "-" + text
		}
		v, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return nil, c.unsupported(lit, "integer literal %s out of range", text)
		}
		return &Literal{Position: c.pos(lit), Kind: IntLit, Int: v}, nil
	case token.FLOAT:
		v, err := strconv.ParseFloat(strings.ReplaceAll(lit.Value, "_", ""), 64)
		if err != nil {
			return nil, c.unsupported(lit, "float literal %s out of range", lit.Value)
		}
		if neg {
			v = -v
		}
		return &Literal{Position: c.pos(lit), Kind: FloatLit, Float: v}, nil
	}
	return nil, c.unsupported(lit, "%s literal", strings.ToLower(lit.Kind.String()))
}

func isIdent(e ast.Expr, name string) bool {
	id, ok := ast.Unparen(e).(*ast.Ident)
	return ok && id.Name == name
}
