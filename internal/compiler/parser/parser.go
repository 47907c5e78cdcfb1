package parser

import (
	"strconv"
	"strings"

	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
	cerrors "github.com/conduit-lang/fieldmeta/internal/compiler/errors"
	"github.com/conduit-lang/fieldmeta/internal/compiler/lexer"
)

// Parser transforms a stream of tokens into a syntax tree
type Parser struct {
	tokens  []lexer.Token
	current int
	errors  []ParseError
}

// New creates a new parser for the given token stream
func New(tokens []lexer.Token) *Parser {
	return &Parser{
		tokens:  tokens,
		current: 0,
		errors:  make([]ParseError, 0),
	}
}

// ParseSource lexes and parses a whole source file. Lexical and syntax errors are
// returned together; the tree is nil when there are any.
func ParseSource(source string) (*ast.Node, cerrors.ErrorList) {
	tokens, lexErrors := lexer.New(source).ScanTokens()
	var errs cerrors.ErrorList
	for _, lexErr := range lexErrors {
		errs = append(errs, lexErrorToCompilerError(lexErr))
	}

	file, parseErrors := New(tokens).Parse()
	for _, parseErr := range parseErrors {
		errs = append(errs, parseErr.CompilerError())
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return file, nil
}

// ParseExpr parses a single metadata value expression, e.g. a default given in
// configuration
func ParseExpr(source string) (*ast.Node, cerrors.ErrorList) {
	tokens, lexErrors := lexer.New(source).ScanTokens()
	var errs cerrors.ErrorList
	for _, lexErr := range lexErrors {
		errs = append(errs, lexErrorToCompilerError(lexErr))
	}
	if len(errs) > 0 {
		return nil, errs
	}

	p := New(tokens)
	expr := p.parseExpr()
	if expr != nil && !p.isAtEnd() {
		p.error(p.peek(), "expression")
	}
	for _, parseErr := range p.errors {
		errs = append(errs, parseErr.CompilerError())
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return expr, nil
}

// Parse parses the token stream and returns the File node and any errors
func (p *Parser) Parse() (*ast.Node, []ParseError) {
	file := ast.New(ast.KindFile, "", ast.SourceLocation{Line: 1, Column: 1})

	for !p.isAtEnd() {
		if stmt := p.parseStatement(); stmt != nil {
			file.Children = append(file.Children, stmt)
		}
	}

	return file, p.errors
}

// parseStatement parses one top-level statement
func (p *Parser) parseStatement() *ast.Node {
	switch {
	case p.check(lexer.TOKEN_METADATA):
		return p.parseMetadataDecl()
	case p.check(lexer.TOKEN_CHAIN):
		return p.parseChainDecl()
	case p.check(lexer.TOKEN_IDENTIFIER) && p.checkNext(lexer.TOKEN_LPAREN):
		return p.parseAccessor()
	case p.check(lexer.TOKEN_AT), p.check(lexer.TOKEN_STRING_LITERAL), p.check(lexer.TOKEN_RECORD):
		return p.parseDeclaration()
	default:
		p.error(p.peek(), "top-level statement")
		p.synchronize()
		return nil
	}
}

// parseMetadataDecl parses `metadata name = default`
func (p *Parser) parseMetadataDecl() *ast.Node {
	keyword := p.advance()

	nameToken, ok := p.expect(lexer.TOKEN_IDENTIFIER, "metadata kind name")
	if !ok {
		p.synchronize()
		return nil
	}
	if _, ok := p.expect(lexer.TOKEN_EQUALS, "'='"); !ok {
		p.synchronize()
		return nil
	}

	value := p.parseExpr()
	if value == nil {
		p.synchronize()
		return nil
	}

	return ast.New(ast.KindMetadataDecl, nameToken.Lexeme, ast.TokenLocation(keyword), value)
}

// parseChainDecl parses `chain name = @m1 @m2 ...`
func (p *Parser) parseChainDecl() *ast.Node {
	keyword := p.advance()

	nameToken, ok := p.expect(lexer.TOKEN_IDENTIFIER, "chain name")
	if !ok {
		p.synchronize()
		return nil
	}
	if _, ok := p.expect(lexer.TOKEN_EQUALS, "'='"); !ok {
		p.synchronize()
		return nil
	}

	chain := ast.New(ast.KindChainDecl, nameToken.Lexeme, ast.TokenLocation(keyword))
	for p.check(lexer.TOKEN_AT) {
		at := p.advance()
		member, ok := p.expect(lexer.TOKEN_IDENTIFIER, "entry point name after '@'")
		if !ok {
			p.synchronize()
			return nil
		}
		chain.Children = append(chain.Children, ast.New(ast.KindMacroRef, member.Lexeme, ast.TokenLocation(at)))
	}

	return chain
}

// parseAccessor parses a hand-written dispatch entry `kind(Type, field) = value`.
// The field `_` declares the type-level default.
func (p *Parser) parseAccessor() *ast.Node {
	kindToken := p.advance()
	p.advance() // (

	typeToken, ok := p.expect(lexer.TOKEN_IDENTIFIER, "record type name")
	if !ok {
		p.synchronize()
		return nil
	}
	if _, ok := p.expect(lexer.TOKEN_COMMA, "','"); !ok {
		p.synchronize()
		return nil
	}
	fieldToken, ok := p.expect(lexer.TOKEN_IDENTIFIER, "field name or '_'")
	if !ok {
		p.synchronize()
		return nil
	}
	if _, ok := p.expect(lexer.TOKEN_RPAREN, "')'"); !ok {
		p.synchronize()
		return nil
	}
	if _, ok := p.expect(lexer.TOKEN_EQUALS, "'='"); !ok {
		p.synchronize()
		return nil
	}

	value := p.parseExpr()
	if value == nil {
		p.synchronize()
		return nil
	}

	return ast.New(ast.KindAccessor, "", ast.TokenLocation(kindToken),
		ast.Ident(kindToken.Lexeme, ast.TokenLocation(kindToken)),
		ast.Ident(typeToken.Lexeme, ast.TokenLocation(typeToken)),
		ast.Ident(fieldToken.Lexeme, ast.TokenLocation(fieldToken)),
		value,
	)
}

// parseDeclaration parses `{@macro} [doc] record ...`. Macros nest right to left:
// `@a @b record R {}` becomes MacroCall(a, MacroCall(b, RecordDef)).
func (p *Parser) parseDeclaration() *ast.Node {
	var macros []lexer.Token
	for p.check(lexer.TOKEN_AT) {
		at := p.advance()
		name, ok := p.expect(lexer.TOKEN_IDENTIFIER, "entry point name after '@'")
		if !ok {
			p.synchronize()
			return nil
		}
		name.Line, name.Column = at.Line, at.Column
		macros = append(macros, name)
	}

	var doc *ast.Node
	if p.check(lexer.TOKEN_STRING_LITERAL) {
		docToken := p.advance()
		doc = ast.Lit(ast.LitString, docToken.Literal.(string), ast.TokenLocation(docToken))
	}

	if !p.check(lexer.TOKEN_RECORD) {
		p.errorExpected(p.peek(), "'record'")
		p.synchronize()
		return nil
	}

	decl := p.parseRecord()
	if decl == nil {
		return nil
	}
	if doc != nil {
		decl = ast.New(ast.KindDoc, "", doc.Loc, doc, decl)
	}

	for i := len(macros) - 1; i >= 0; i-- {
		decl = ast.New(ast.KindMacroCall, macros[i].Lexeme, ast.TokenLocation(macros[i]), decl)
	}

	return decl
}

// parseRecord parses `record Name[Params] <: Super { fields }`
func (p *Parser) parseRecord() *ast.Node {
	keyword := p.advance()

	name := p.parseRecordName()
	if name == nil {
		p.synchronize()
		return nil
	}

	open, ok := p.expect(lexer.TOKEN_LBRACE, "'{' after record name")
	if !ok {
		p.synchronize()
		return nil
	}

	block := ast.New(ast.KindBlock, "", ast.TokenLocation(open))
	for !p.check(lexer.TOKEN_RBRACE) && !p.isAtEnd() {
		if field := p.parseField(); field != nil {
			block.Children = append(block.Children, field)
		}
	}

	if !p.match(lexer.TOKEN_RBRACE) {
		p.errorExpected(p.peek(), "'}' after record body")
		return nil
	}

	return ast.New(ast.KindRecordDef, "", ast.TokenLocation(keyword), name, block)
}

// parseRecordName parses the declared name with optional parameters and supertype
func (p *Parser) parseRecordName() *ast.Node {
	nameToken, ok := p.expect(lexer.TOKEN_IDENTIFIER, "record name")
	if !ok {
		return nil
	}

	name := ast.Ident(nameToken.Lexeme, ast.TokenLocation(nameToken))
	if p.check(lexer.TOKEN_LBRACKET) {
		params := p.parseTypeParams()
		if params == nil {
			return nil
		}
		name = ast.New(ast.KindTypeApply, "", name.Loc, append([]*ast.Node{name}, params...)...)
	}

	if p.check(lexer.TOKEN_SUBTYPE) {
		op := p.advance()
		super := p.parseTypeRef()
		if super == nil {
			return nil
		}
		name = ast.New(ast.KindSubtype, "", ast.TokenLocation(op), name, super)
	}

	return name
}

// parseField parses one field of a record body:
//
//	name [: Type] [= default] {| value} [;]
func (p *Parser) parseField() *ast.Node {
	nameToken, ok := p.expect(lexer.TOKEN_IDENTIFIER, "field name")
	if !ok {
		p.synchronizeToNextField()
		return nil
	}

	head := ast.Ident(nameToken.Lexeme, ast.TokenLocation(nameToken))
	if p.match(lexer.TOKEN_COLON) {
		typ := p.parseTypeRef()
		if typ == nil {
			p.synchronizeToNextField()
			return nil
		}
		head = ast.New(ast.KindFieldDecl, "", head.Loc, head, typ)
	}

	var field *ast.Node
	if p.check(lexer.TOKEN_EQUALS) {
		eq := p.advance()
		rhs := p.parseAnnotated(p.parseExpr())
		if rhs == nil {
			p.synchronizeToNextField()
			return nil
		}
		field = ast.New(ast.KindAssign, "", ast.TokenLocation(eq), head, rhs)
	} else {
		field = p.parseAnnotated(head)
		if field == nil {
			p.synchronizeToNextField()
			return nil
		}
	}

	p.match(lexer.TOKEN_SEMICOLON)
	return field
}

// parseAnnotated folds `x | a | b` left to right into BinaryOp(|, BinaryOp(|, x, a), b)
func (p *Parser) parseAnnotated(left *ast.Node) *ast.Node {
	if left == nil {
		return nil
	}
	for p.check(lexer.TOKEN_PIPE) {
		pipe := p.advance()
		right := p.parseExpr()
		if right == nil {
			return nil
		}
		left = ast.New(ast.KindBinaryOp, ast.AnnotationOp, ast.TokenLocation(pipe), left, right)
	}
	return left
}

// parseTypeRef parses `Name` or `Name[T, ...]`
func (p *Parser) parseTypeRef() *ast.Node {
	nameToken, ok := p.expect(lexer.TOKEN_IDENTIFIER, "type name")
	if !ok {
		return nil
	}

	ref := ast.New(ast.KindTypeRef, nameToken.Lexeme, ast.TokenLocation(nameToken))
	if p.check(lexer.TOKEN_LBRACKET) {
		params := p.parseTypeParams()
		if params == nil {
			return nil
		}
		ref.Children = params
	}
	return ref
}

// parseTypeParams parses `[T, U]`
func (p *Parser) parseTypeParams() []*ast.Node {
	p.advance() // [

	var params []*ast.Node
	for {
		param := p.parseTypeRef()
		if param == nil {
			return nil
		}
		params = append(params, param)
		if !p.match(lexer.TOKEN_COMMA) {
			break
		}
	}

	if _, ok := p.expect(lexer.TOKEN_RBRACKET, "']' after type parameters"); !ok {
		return nil
	}
	return params
}

// parseExpr parses a metadata value expression
func (p *Parser) parseExpr() *ast.Node {
	token := p.peek()
	loc := ast.TokenLocation(token)

	switch token.Type {
	case lexer.TOKEN_INT_LITERAL:
		p.advance()
		return ast.Lit(ast.LitInt, strconv.FormatInt(token.Literal.(int64), 10), loc)
	case lexer.TOKEN_FLOAT_LITERAL:
		p.advance()
		return ast.Lit(ast.LitFloat, strings.ReplaceAll(token.Lexeme, "_", ""), loc)
	case lexer.TOKEN_STRING_LITERAL:
		p.advance()
		return ast.Lit(ast.LitString, token.Literal.(string), loc)
	case lexer.TOKEN_TRUE, lexer.TOKEN_FALSE:
		p.advance()
		return ast.Lit(ast.LitBool, token.Lexeme, loc)
	case lexer.TOKEN_NOTHING:
		p.advance()
		return ast.Nothing(loc)
	case lexer.TOKEN_MINUS:
		return p.parseNegative()
	case lexer.TOKEN_IDENTIFIER:
		p.advance()
		if p.check(lexer.TOKEN_LPAREN) {
			open := p.advance()
			args, ok := p.parseExprList(lexer.TOKEN_RPAREN, open)
			if !ok {
				return nil
			}
			return ast.New(ast.KindCall, token.Lexeme, loc, args...)
		}
		return ast.Ident(token.Lexeme, loc)
	case lexer.TOKEN_LPAREN:
		return p.parseParenthesized()
	case lexer.TOKEN_LBRACKET:
		open := p.advance()
		items, ok := p.parseExprList(lexer.TOKEN_RBRACKET, open)
		if !ok {
			return nil
		}
		return ast.New(ast.KindList, "", loc, items...)
	default:
		p.errorExpected(token, "value expression")
		return nil
	}
}

// parseNegative parses a minus sign applied to a number literal
func (p *Parser) parseNegative() *ast.Node {
	minus := p.advance()
	next := p.peek()
	switch next.Type {
	case lexer.TOKEN_INT_LITERAL:
		p.advance()
		return ast.Lit(ast.LitInt, strconv.FormatInt(-next.Literal.(int64), 10), ast.TokenLocation(minus))
	case lexer.TOKEN_FLOAT_LITERAL:
		p.advance()
		return ast.Lit(ast.LitFloat, "-"+strings.ReplaceAll(next.Lexeme, "_", ""), ast.TokenLocation(minus))
	default:
		p.errorExpected(next, "number after '-'")
		return nil
	}
}

// parseParenthesized parses `()`, `(x)`, `(x,)` and `(x, y, ...)`.
// A single expression without a comma is only grouped, not a tuple.
func (p *Parser) parseParenthesized() *ast.Node {
	open := p.advance()
	loc := ast.TokenLocation(open)

	if p.match(lexer.TOKEN_RPAREN) {
		return ast.New(ast.KindTuple, "", loc)
	}

	first := p.parseExpr()
	if first == nil {
		return nil
	}
	if p.match(lexer.TOKEN_RPAREN) {
		return first
	}
	if _, ok := p.expect(lexer.TOKEN_COMMA, "',' or ')'"); !ok {
		return nil
	}

	items := []*ast.Node{first}
	for !p.check(lexer.TOKEN_RPAREN) {
		item := p.parseExpr()
		if item == nil {
			return nil
		}
		items = append(items, item)
		if !p.match(lexer.TOKEN_COMMA) {
			break
		}
	}

	if _, ok := p.expect(lexer.TOKEN_RPAREN, "')' after tuple"); !ok {
		return nil
	}
	return ast.New(ast.KindTuple, "", loc, items...)
}

// parseExprList parses comma-separated expressions up to the closing token,
// allowing a trailing comma
func (p *Parser) parseExprList(closing lexer.TokenType, open lexer.Token) ([]*ast.Node, bool) {
	items := make([]*ast.Node, 0)
	for !p.check(closing) {
		if p.isAtEnd() {
			p.error(p.peek(), "unclosed '"+open.Lexeme+"'")
			return nil, false
		}
		item := p.parseExpr()
		if item == nil {
			return nil, false
		}
		items = append(items, item)
		if !p.match(lexer.TOKEN_COMMA) {
			break
		}
	}
	if !p.match(closing) {
		p.errorExpected(p.peek(), "closing '"+lexer.TokenTypeNames[closing]+"'")
		return nil, false
	}
	return items, true
}

// Helper methods

// peek returns the current token without consuming it
func (p *Parser) peek() lexer.Token {
	if len(p.tokens) == 0 {
		return lexer.Token{Type: lexer.TOKEN_EOF}
	}
	if p.current >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.current]
}

// previous returns the most recently consumed token
func (p *Parser) previous() lexer.Token {
	if len(p.tokens) == 0 || p.current == 0 {
		return lexer.Token{Type: lexer.TOKEN_EOF}
	}
	return p.tokens[p.current-1]
}

// advance consumes the current token and returns it
func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

// check returns true if the current token matches the given type
func (p *Parser) check(tokenType lexer.TokenType) bool {
	if p.isAtEnd() {
		return false
	}
	return p.peek().Type == tokenType
}

// checkNext returns true if the token after the current one matches the given type
func (p *Parser) checkNext(tokenType lexer.TokenType) bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.current+1].Type == tokenType
}

// match consumes the token if it matches any of the given types
func (p *Parser) match(types ...lexer.TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

// expect consumes a token of the given type or records what was expected instead
func (p *Parser) expect(tokenType lexer.TokenType, expected string) (lexer.Token, bool) {
	if p.check(tokenType) {
		return p.advance(), true
	}
	p.errorExpected(p.peek(), expected)
	return lexer.Token{Type: lexer.TOKEN_ERROR}, false
}

// isAtEnd returns true if we've reached the end of the token stream
func (p *Parser) isAtEnd() bool {
	return p.current >= len(p.tokens) || p.tokens[p.current].Type == lexer.TOKEN_EOF
}

// Error handling

// error records a parse error; context describes where it happened
func (p *Parser) error(token lexer.Token, context string) {
	p.errors = append(p.errors, NewParseError(context, token))
}

// errorExpected records a parse error naming the expected construct
func (p *Parser) errorExpected(token lexer.Token, expected string) {
	err := NewParseError(expected, token)
	err.Expected = expected
	p.errors = append(p.errors, err)
}

// synchronize implements panic mode error recovery at statement boundaries
func (p *Parser) synchronize() {
	p.advance()

	for !p.isAtEnd() {
		if p.check(lexer.TOKEN_METADATA) || p.check(lexer.TOKEN_CHAIN) ||
			p.check(lexer.TOKEN_AT) || p.check(lexer.TOKEN_RECORD) {
			return
		}
		// An accessor definition starting a new line
		if p.check(lexer.TOKEN_IDENTIFIER) && p.checkNext(lexer.TOKEN_LPAREN) &&
			p.peek().Line > p.previous().Line {
			return
		}
		p.advance()
	}
}

// synchronizeToNextField skips to the next plausible field or the end of the record
func (p *Parser) synchronizeToNextField() {
	line := p.previous().Line
	for !p.isAtEnd() {
		if p.check(lexer.TOKEN_RBRACE) {
			return
		}
		if p.match(lexer.TOKEN_SEMICOLON) {
			return
		}
		if p.check(lexer.TOKEN_IDENTIFIER) && p.peek().Line > line {
			return
		}
		p.advance()
	}
}
