package parse

import (
	"slices"
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/roach88/cbind/internal/ir"
)

type walker struct {
	src   []byte
	file  string
	diags []Diagnostic
}

// owner is the class or template whose body is being walked.
type owner struct {
	elem      ir.Element
	name      string // simple name, for constructor detection
	qualified string
	cls       *ir.Class // nil for templates
}

func (w *walker) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return strings.Join(strings.Fields(n.Utf8Text(w.src)), " ")
}

// collect records every ERROR and MISSING node under n.
func (w *walker) collect(n *tree_sitter.Node) {
	if n.IsError() || n.IsMissing() {
		msg := "syntax error"
		if n.IsMissing() {
			msg = "missing " + n.Kind()
		}
		p := n.StartPosition()
		w.diags = append(w.diags, Diagnostic{
			File:    w.file,
			Line:    int(p.Row) + 1,
			Column:  int(p.Column) + 1,
			Message: msg,
		})
		return
	}
	for _, c := range all(n) {
		if c.HasError() || c.IsError() || c.IsMissing() {
			w.collect(c)
		}
	}
}

func named(n *tree_sitter.Node) []*tree_sitter.Node {
	count := n.NamedChildCount()
	out := make([]*tree_sitter.Node, 0, count)
	for i := uint(0); i < count; i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func all(n *tree_sitter.Node) []*tree_sitter.Node {
	count := n.ChildCount()
	out := make([]*tree_sitter.Node, 0, count)
	for i := uint(0); i < count; i++ {
		if c := n.Child(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func same(a, b *tree_sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}

// scope walks namespace-level declarations under n into parent. ns holds
// the enclosing namespace names.
func (w *walker) scope(parent ir.Element, ns []string, n *tree_sitter.Node) {
	for _, c := range named(n) {
		if c.IsError() || c.IsMissing() {
			continue
		}
		switch c.Kind() {
		case "namespace_definition":
			w.namespace(parent, ns, c)
		case "class_specifier", "struct_specifier":
			w.class(parent, ns, c)
		case "template_declaration":
			w.template(parent, ns, c)
		case "declaration", "function_definition":
			w.declaration(parent, ns, c)
		case "type_definition":
			w.typedef(parent, c)
		case "alias_declaration":
			w.alias(parent, c)
		case "linkage_specification":
			if body := c.ChildByFieldName("body"); body != nil {
				if body.Kind() == "declaration_list" {
					w.scope(parent, ns, body)
				} else {
					w.declaration(parent, ns, body)
				}
			}
		case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif", "declaration_list":
			w.scope(parent, ns, c)
		}
	}
}

func (w *walker) namespace(parent ir.Element, ns []string, n *tree_sitter.Node) {
	name := w.text(n.ChildByFieldName("name"))
	body := n.ChildByFieldName("body")
	if name == "" || body == nil {
		// Anonymous namespaces have internal linkage.
		return
	}
	cur := parent
	for _, part := range strings.Split(name, "::") {
		part = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "inline"))
		cur = openNamespace(cur, part)
		ns = slices.Concat(ns, []string{part})
	}
	w.scope(cur, ns, body)
}

// openNamespace returns the existing child namespace called name, so a
// namespace reopened later in the header merges into the first one.
func openNamespace(parent ir.Element, name string) ir.Element {
	for _, c := range ir.ChildrenOf[*ir.Namespace](parent) {
		if c.Name == name {
			return c
		}
	}
	nm := &ir.Namespace{Name: name}
	ir.MustAdd(parent, nm)
	return nm
}

func qualify(ns []string, name string) string {
	if len(ns) == 0 {
		return name
	}
	return strings.Join(ns, "::") + "::" + name
}

// class lowers a class or struct definition. Forward declarations and
// specializations are skipped.
func (w *walker) class(parent ir.Element, ns []string, n *tree_sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	body := n.ChildByFieldName("body")
	if nameNode == nil || body == nil || nameNode.Kind() != "type_identifier" {
		return
	}
	name := w.text(nameNode)
	qualified := qualify(ns, name)
	cls := &ir.Class{
		Name:      name,
		Type:      &ir.CppType{Spelling: qualified},
		BaseClass: w.base(n),
	}
	ir.MustAdd(parent, cls)
	w.body(owner{elem: cls, name: name, qualified: qualified, cls: cls},
		slices.Concat(ns, []string{name}), body, n.Kind() == "struct_specifier")
}

// base returns the first base class, which is the only one bindings keep.
func (w *walker) base(n *tree_sitter.Node) *ir.CppType {
	for _, c := range named(n) {
		if c.Kind() != "base_class_clause" {
			continue
		}
		for _, b := range named(c) {
			switch b.Kind() {
			case "type_identifier", "qualified_identifier", "template_type":
				return &ir.CppType{Spelling: w.text(b)}
			}
		}
	}
	return nil
}

func (w *walker) template(parent ir.Element, ns []string, n *tree_sitter.Node) {
	var decl *tree_sitter.Node
	for _, c := range named(n) {
		switch c.Kind() {
		case "class_specifier", "struct_specifier":
			decl = c
		}
	}
	if decl == nil {
		// Function and variable templates have no binding.
		return
	}
	nameNode := decl.ChildByFieldName("name")
	body := decl.ChildByFieldName("body")
	if nameNode == nil || body == nil || nameNode.Kind() != "type_identifier" {
		return
	}
	name := w.text(nameNode)
	t := &ir.Template{
		Name:      name,
		Qualified: qualify(ns, name),
		BaseClass: w.base(decl),
		Params:    w.templateParams(n.ChildByFieldName("parameters")),
	}
	ir.MustAdd(parent, t)
	w.body(owner{elem: t, name: name, qualified: t.Qualified},
		slices.Concat(ns, []string{name}), body, decl.Kind() == "struct_specifier")
}

func (w *walker) templateParams(n *tree_sitter.Node) []ir.TemplateParam {
	if n == nil {
		return nil
	}
	var params []ir.TemplateParam
	for _, c := range named(n) {
		var p ir.TemplateParam
		switch c.Kind() {
		case "type_parameter_declaration", "variadic_type_parameter_declaration":
			for _, id := range named(c) {
				if id.Kind() == "type_identifier" {
					p.Name = w.text(id)
				}
			}
		case "optional_type_parameter_declaration":
			p.Name = w.text(c.ChildByFieldName("name"))
			if d := c.ChildByFieldName("default_type"); d != nil {
				p.Default = &ir.CppType{Spelling: w.text(d)}
			}
		case "parameter_declaration", "optional_parameter_declaration":
			p.Name = declaratorName(w, c.ChildByFieldName("declarator"))
		default:
			continue
		}
		params = append(params, p)
	}
	return params
}

func (w *walker) typedef(parent ir.Element, n *tree_sitter.Node) {
	typ := w.typeSpelling(n)
	for _, d := range w.declarators(n) {
		suffix, inner := w.unwrap(d)
		if inner == nil || inner.Kind() != "type_identifier" {
			continue
		}
		ir.MustAdd(parent, &ir.Typedef{
			Name:   w.text(inner),
			Target: &ir.CppType{Spelling: typ + suffix},
		})
	}
}

func (w *walker) alias(parent ir.Element, n *tree_sitter.Node) {
	name := w.text(n.ChildByFieldName("name"))
	if name == "" {
		return
	}
	ir.MustAdd(parent, &ir.Typedef{
		Name:   name,
		Target: &ir.CppType{Spelling: w.text(n.ChildByFieldName("type"))},
	})
}

// declaration handles namespace-level declarations. Only free function
// prototypes and definitions produce elements; variables are skipped.
func (w *walker) declaration(parent ir.Element, ns []string, n *tree_sitter.Node) {
	if t := n.ChildByFieldName("type"); t != nil && (t.Kind() == "class_specifier" || t.Kind() == "struct_specifier") {
		w.class(parent, ns, t)
	}
	for _, d := range w.declarators(n) {
		m := w.function(n, d, nil)
		if m == nil {
			continue
		}
		m.MethodKind = ir.MethodStatic
		m.Qualified = qualify(ns, m.Name)
		ir.MustAdd(parent, m)
	}
}

// body walks a class or template body. Only public members become
// children; the rest only feed class metadata.
func (w *walker) body(o owner, ns []string, n *tree_sitter.Node, public bool) {
	for _, c := range all(n) {
		if c.IsError() || c.IsMissing() {
			continue
		}
		switch c.Kind() {
		case "access_specifier":
			access := strings.TrimSpace(strings.TrimSuffix(w.text(c), ":"))
			public = access == "public"
		case "field_declaration", "declaration", "function_definition":
			w.member(o, ns, c, public)
		case "template_declaration":
			// Member templates are not bound.
		case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif":
			w.body(o, ns, c, public)
		}
	}
}

func (w *walker) member(o owner, ns []string, n *tree_sitter.Node, public bool) {
	t := n.ChildByFieldName("type")
	decls := w.declarators(n)

	if t != nil && (t.Kind() == "class_specifier" || t.Kind() == "struct_specifier") && t.ChildByFieldName("body") != nil {
		if public {
			w.class(o.elem, ns, t)
		}
		if len(decls) == 0 {
			return
		}
	}

	static := hasChild(w, n, "storage_class_specifier", "static")
	deleted := hasKind(n, "delete_method_clause")

	for _, d := range decls {
		if _, inner := w.unwrap(d); inner != nil && inner.Kind() == "function_declarator" {
			w.memberFunction(o, n, d, public, static, deleted)
			continue
		}
		if static || !public {
			if o.cls != nil && !public && w.isConst(n) {
				o.cls.Metadata.HasPrivateConstField = true
			}
			continue
		}
		suffix, inner := w.unwrap(d)
		if inner == nil {
			continue
		}
		ir.MustAdd(o.elem, &ir.Field{
			Name:  w.text(inner),
			Const: w.isConst(n),
			Type:  &ir.CppType{Spelling: w.typeSpelling(n) + suffix},
		})
	}
}

func (w *walker) memberFunction(o owner, n, d *tree_sitter.Node, public, static, deleted bool) {
	m := w.function(n, d, &o)
	if m == nil {
		return
	}
	m.Qualified = o.qualified + "::" + m.Name

	if o.cls != nil {
		if pureVirtual(w, n) {
			o.cls.Abstract = true
		}
		switch {
		case m.IsConstructor():
			o.cls.Metadata.HasConstructor = true
			if len(m.Args()) == 0 {
				o.cls.Metadata.HasDefaultConstructor = true
			}
		case m.Name == "operator new" || m.Name == "operator new[]":
			if !public || deleted {
				o.cls.Metadata.HasHiddenNew = true
			}
			return
		case m.Name == "operator delete" || m.Name == "operator delete[]":
			if !public || deleted {
				o.cls.Metadata.HasHiddenDelete = true
			}
			return
		}
	}
	if !public || deleted {
		return
	}
	if static && !m.IsConstructor() && !m.IsDestructor() {
		m.MethodKind = ir.MethodStatic
	}
	if m.Operator != ir.OpNone && static {
		m.MethodKind = ir.MethodStaticOp
	}
	ir.MustAdd(o.elem, m)
}

// function lowers one function declarator. o is nil for free functions.
// Returns nil for declarators that name nothing bindable (out-of-line
// definitions, conversion operators, variadics).
func (w *walker) function(decl, d *tree_sitter.Node, o *owner) *ir.Method {
	suffix, fd := w.unwrap(d)
	if fd == nil || fd.Kind() != "function_declarator" {
		return nil
	}
	nameNode := fd.ChildByFieldName("declarator")
	if nameNode == nil {
		return nil
	}
	args, ok := w.params(fd.ChildByFieldName("parameters"))
	if !ok {
		return nil
	}

	m := &ir.Method{MethodKind: ir.MethodRegular}
	switch nameNode.Kind() {
	case "identifier", "field_identifier":
		m.Name = w.text(nameNode)
		if o != nil && m.Name == o.name && decl.ChildByFieldName("type") == nil {
			m.MethodKind = ir.MethodConstructor
			m.ReturnType = &ir.CppType{Spelling: o.qualified}
		}
	case "destructor_name":
		if o == nil {
			return nil
		}
		m.Name = "~" + o.name
		m.MethodKind = ir.MethodDestructor
		m.ReturnType = &ir.CppType{Spelling: "void", Void: true}
	case "operator_name":
		spelled := strings.TrimSpace(strings.TrimPrefix(w.text(nameNode), "operator"))
		switch spelled {
		case "new", "new[]", "new []", "delete", "delete[]", "delete []":
			m.Name = "operator " + strings.ReplaceAll(spelled, " ", "")
		default:
			m.Name = "operator" + spelled
			arity := len(args)
			if o == nil && arity > 0 {
				arity--
			}
			op, ok := ir.LookupOperator(spelled, arity)
			if !ok {
				return nil
			}
			m.Operator = op
		}
	default:
		return nil
	}

	if m.ReturnType == nil {
		m.ReturnType = &ir.CppType{Spelling: w.typeSpelling(decl) + suffix}
		if m.ReturnType.Spelling == "void" {
			m.ReturnType.Void = true
		}
	}
	for _, a := range args {
		ir.MustAdd(m, a)
	}
	return m
}

// params lowers a parameter list. ok is false for variadic functions.
func (w *walker) params(n *tree_sitter.Node) (args []*ir.Argument, ok bool) {
	if n == nil {
		return nil, true
	}
	for _, c := range all(n) {
		if !c.IsNamed() && c.Kind() == "..." {
			return nil, false
		}
	}
	for i, c := range named(n) {
		switch c.Kind() {
		case "parameter_declaration", "optional_parameter_declaration":
		case "variadic_parameter", "variadic_parameter_declaration":
			return nil, false
		default:
			continue
		}
		d := c.ChildByFieldName("declarator")
		suffix, inner := w.unwrap(d)
		typ := w.typeSpelling(c) + suffix
		if typ == "void" && d == nil {
			// f(void)
			continue
		}
		name := ""
		if inner != nil {
			name = w.text(inner)
		}
		if name == "" {
			name = "arg" + strconv.Itoa(i)
		}
		args = append(args, &ir.Argument{
			Name:       name,
			Type:       &ir.CppType{Spelling: typ},
			HasDefault: c.Kind() == "optional_parameter_declaration",
		})
	}
	return args, true
}

// declarators returns n's declarator children, skipping its type.
func (w *walker) declarators(n *tree_sitter.Node) []*tree_sitter.Node {
	t := n.ChildByFieldName("type")
	var out []*tree_sitter.Node
	for _, c := range named(n) {
		if same(c, t) {
			continue
		}
		switch c.Kind() {
		case "identifier", "field_identifier", "type_identifier",
			"pointer_declarator", "reference_declarator", "array_declarator",
			"function_declarator", "init_declarator", "parenthesized_declarator":
			out = append(out, c)
		}
	}
	return out
}

// unwrap peels pointer, reference, array and init layers off a declarator.
// It returns the type suffix the layers add and the innermost declarator
// (an identifier or a function declarator).
func (w *walker) unwrap(d *tree_sitter.Node) (string, *tree_sitter.Node) {
	var ptrs, arrays strings.Builder
	for d != nil {
		switch d.Kind() {
		case "pointer_declarator":
			ptrs.WriteString("*")
			if hasKind(d, "type_qualifier") {
				ptrs.WriteString(" const")
			}
			d = d.ChildByFieldName("declarator")
		case "reference_declarator":
			if strings.HasPrefix(w.text(d), "&&") {
				ptrs.WriteString("&&")
			} else {
				ptrs.WriteString("&")
			}
			kids := named(d)
			if len(kids) == 0 {
				d = nil
			} else {
				d = kids[len(kids)-1]
			}
		case "array_declarator":
			arrays.WriteString("[" + w.text(d.ChildByFieldName("size")) + "]")
			d = d.ChildByFieldName("declarator")
		case "init_declarator":
			d = d.ChildByFieldName("declarator")
		case "parenthesized_declarator":
			kids := named(d)
			if len(kids) == 0 {
				d = nil
			} else {
				d = kids[0]
			}
		default:
			return ptrs.String() + arrays.String(), d
		}
	}
	return ptrs.String() + arrays.String(), nil
}

func declaratorName(w *walker, d *tree_sitter.Node) string {
	_, inner := w.unwrap(d)
	return w.text(inner)
}

// typeSpelling renders the declared type of n, with leading or trailing
// cv-qualifiers normalized to a `const ` prefix and elaborated specifiers
// stripped.
func (w *walker) typeSpelling(n *tree_sitter.Node) string {
	t := n.ChildByFieldName("type")
	if t == nil {
		return ""
	}
	var spelled string
	switch t.Kind() {
	case "class_specifier", "struct_specifier", "enum_specifier", "union_specifier":
		spelled = w.text(t.ChildByFieldName("name"))
	default:
		spelled = w.text(t)
	}
	if w.isConst(n) {
		spelled = "const " + spelled
	}
	return spelled
}

func (w *walker) isConst(n *tree_sitter.Node) bool {
	return hasChild(w, n, "type_qualifier", "const")
}

func hasChild(w *walker, n *tree_sitter.Node, kind, text string) bool {
	for _, c := range all(n) {
		if c.Kind() == kind && w.text(c) == text {
			return true
		}
	}
	return false
}

func hasKind(n *tree_sitter.Node, kind string) bool {
	for _, c := range all(n) {
		if c.Kind() == kind {
			return true
		}
	}
	return false
}

// pureVirtual reports `= 0` on a member function declaration.
func pureVirtual(w *walker, n *tree_sitter.Node) bool {
	if hasKind(n, "pure_virtual_clause") {
		return true
	}
	for _, c := range named(n) {
		if c.Kind() == "number_literal" && w.text(c) == "0" {
			return true
		}
	}
	return false
}
