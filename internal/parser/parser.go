// internal/parser/parser.go
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"vela/internal/diagnostics"
	"vela/internal/lexer"
)

// Add operator precedence (optional for debug)
var precedence = map[lexer.TokenType]int{
	// Logical operators (lowest precedence)
	lexer.TokenOr:  1, // ||
	lexer.TokenAnd: 2, // &&
	// Bitwise operators
	lexer.TokenPipe:  3, // |
	lexer.TokenCaret:  3, // ^
	lexer.TokenAmp:   4, // &
	// Comparison operators
	lexer.TokenDoubleEqual: 5, // ==
	lexer.TokenNotEqual:    5, // !=
	lexer.TokenLT:          5, // <
	lexer.TokenGT:          5, // >
	lexer.TokenLE:          5, // <=
	lexer.TokenGE:          5, // >=
	// Shifts
	lexer.TokenShl: 6,
	lexer.TokenShr: 6,
	// Arithmetic operators
	lexer.TokenPlus:    7, // +
	lexer.TokenMinus:   7, // -
	lexer.TokenStar:    8, // *
	lexer.TokenSlash:   8, // /
	lexer.TokenPercent: 8, // %
}

var compoundOps = map[lexer.TokenType]string{
	lexer.TokenPlusEq:    "+",
	lexer.TokenMinusEq:   "-",
	lexer.TokenStarEq:    "*",
	lexer.TokenSlashEq:   "/",
	lexer.TokenPercentEq: "%",
}

type Parser struct {
	tokens      []lexer.Token
	current     int
	Errors      []error
	file        string
	sourceLines []string // Source lines for error reporting
}

func NewParser(tokens []lexer.Token) *Parser {
	return &Parser{
		tokens:  tokens,
		current: 0,
		Errors:  []error{},
	}
}

func NewParserWithSource(tokens []lexer.Token, source string, file string) *Parser {
	return &Parser{
		tokens:      tokens,
		current:     0,
		Errors:      []error{},
		file:        file,
		sourceLines: strings.Split(source, "\n"),
	}
}

func (p *Parser) Parse() []Stmt {
	var stmts []Stmt
	for !p.isAtEnd() {
		stmts = append(stmts, p.topLevel())
	}
	return stmts
}

// topLevel handles the declaration forms that only make sense at module scope
// in addition to everything statement() accepts, so struct/abstract/enum/alias
// declarations can also appear nested inside a function body without a
// separate grammar path.
func (p *Parser) topLevel() Stmt {
	if p.match(lexer.TokenFn) {
		return p.function()
	}
	if p.match(lexer.TokenStruct) {
		return p.structDecl(false)
	}
	if p.match(lexer.TokenMut) {
		p.consume(lexer.TokenStruct, "Expect 'struct' after 'mut'")
		return p.structDecl(true)
	}
	if p.match(lexer.TokenAbstract) {
		return p.abstractDecl()
	}
	if p.match(lexer.TokenEnum) {
		return p.enumDecl()
	}
	if p.match(lexer.TokenAlias) {
		return p.aliasDecl()
	}
	return p.statement()
}

func (p *Parser) statement() Stmt {
	// Import statement
	if p.match(lexer.TokenImport) {
		return p.importStatement()
	}

	// If statement
	if p.match(lexer.TokenIf) {
		return p.ifStatement()
	}

	// While loop
	if p.match(lexer.TokenWhile) {
		return p.whileStatement()
	}

	// For loop
	if p.match(lexer.TokenFor) {
		return p.forStatement()
	}

	// Log/print statement
	if p.match(lexer.TokenLog) {
		p.consume(lexer.TokenLParen, "Expect '(' after log")
		expr := p.expression()
		p.consume(lexer.TokenRParen, "Expect ')' after log argument")
		return &PrintStmt{Expr: expr}
	}

	// Variable declaration
	if p.match(lexer.TokenLet) {
		nameTok := p.consume(lexer.TokenIdent, "Expect variable name")
		p.consume(lexer.TokenEqual, "Expect '=' after variable name")
		expr := p.expression()
		return &LetStmt{Name: nameTok.Lexeme, Expr: expr}
	}

	// Return statement
	if p.match(lexer.TokenReturn) {
		var value Expr = nil
		if !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
			value = p.expression()
		}
		return &ReturnStmt{Value: value}
	}

	if p.match(lexer.TokenBreak) {
		return &BreakStmt{}
	}
	if p.match(lexer.TokenContinue) {
		return &ContinueStmt{}
	}
	if p.match(lexer.TokenThrow) {
		value := p.expression()
		return &ThrowStmt{Value: value}
	}
	if p.match(lexer.TokenTry) {
		return p.tryStatement()
	}

	// Assignment (plain, index, field, compound) against any assignable target.
	if stmt, ok := p.tryAssignment(); ok {
		return stmt
	}

	// Expression statement
	expr := p.expression()
	return &ExpressionStmt{Expr: expr}
}

// tryAssignment speculatively parses a postfix expression and, if it is
// immediately followed by '=' or a compound-assignment operator, builds the
// matching assignment statement. Otherwise it rewinds and reports no match so
// statement() falls through to plain expression parsing.
func (p *Parser) tryAssignment() (Stmt, bool) {
	saved := p.current
	target := p.parseCall()

	if p.match(lexer.TokenEqual) {
		value := p.expression()
		switch t := target.(type) {
		case *Variable:
			return &AssignmentStmt{Name: t.Name, Value: value}, true
		case *IndexExpr:
			return &IndexAssignmentStmt{Object: t.Object, Index: t.Index, Value: value}, true
		case *PropertyExpr:
			return &FieldAssignmentStmt{Object: t.Object, Field: t.Property, Value: value}, true
		default:
			p.current = saved
			return nil, false
		}
	}

	for tok, op := range compoundOps {
		if p.check(tok) {
			p.advance()
			value := p.expression()
			switch target.(type) {
			case *Variable, *IndexExpr, *PropertyExpr:
				return &CompoundAssignmentStmt{Target: target, Op: op, Value: value}, true
			}
			p.current = saved
			return nil, false
		}
	}

	p.current = saved
	return nil, false
}

func (p *Parser) ifStatement() Stmt {
	condition := p.expression()
	p.consume(lexer.TokenLBrace, "Expect '{' before if body")
	thenBranch := p.blockStatements()
	p.consume(lexer.TokenRBrace, "Expect '}' after if body")

	var elseBranch []Stmt
	if p.match(lexer.TokenElse) {
		if p.match(lexer.TokenIf) {
			// else if - parse as nested if statement
			elseBranch = []Stmt{p.ifStatement()}
		} else {
			// else block
			p.consume(lexer.TokenLBrace, "Expect '{' before else body")
			elseBranch = p.blockStatements()
			p.consume(lexer.TokenRBrace, "Expect '}' after else body")
		}
	}

	return &IfStmt{Condition: condition, Then: thenBranch, Else: elseBranch}
}

func (p *Parser) tryStatement() Stmt {
	p.consume(lexer.TokenLBrace, "Expect '{' before try body")
	tryBlock := p.blockStatements()
	p.consume(lexer.TokenRBrace, "Expect '}' after try body")

	var catchVar string
	var catchBlock []Stmt
	if p.match(lexer.TokenCatch) {
		if p.check(lexer.TokenIdent) {
			catchVar = p.advance().Lexeme
		}
		p.consume(lexer.TokenLBrace, "Expect '{' before catch body")
		catchBlock = p.blockStatements()
		p.consume(lexer.TokenRBrace, "Expect '}' after catch body")
	}

	var finallyBlock []Stmt
	if p.match(lexer.TokenFinally) {
		p.consume(lexer.TokenLBrace, "Expect '{' before finally body")
		finallyBlock = p.blockStatements()
		p.consume(lexer.TokenRBrace, "Expect '}' after finally body")
	}

	return &TryStmt{TryBlock: tryBlock, CatchVar: catchVar, CatchBlock: catchBlock, FinallyBlock: finallyBlock}
}

func (p *Parser) structDecl(mutable bool) Stmt {
	nameTok := p.consume(lexer.TokenIdent, "Expect struct name")

	var typeParams []string
	if p.match(lexer.TokenWhere) {
		typeParams = append(typeParams, p.consume(lexer.TokenIdent, "Expect type parameter name").Lexeme)
		for p.match(lexer.TokenComma) {
			typeParams = append(typeParams, p.consume(lexer.TokenIdent, "Expect type parameter name").Lexeme)
		}
	}

	var parent string
	if p.match(lexer.TokenLT) {
		parent = p.consume(lexer.TokenIdent, "Expect parent type name after '<'").Lexeme
	}

	p.consume(lexer.TokenLBrace, "Expect '{' before struct body")
	var fields []StructFieldDecl
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		fieldName := p.consume(lexer.TokenIdent, "Expect field name").Lexeme
		var fieldType string
		if p.match(lexer.TokenColon) {
			fieldType = p.consume(lexer.TokenIdent, "Expect field type after ':'").Lexeme
		}
		fields = append(fields, StructFieldDecl{Name: fieldName, Type: fieldType})
		p.match(lexer.TokenComma)
	}
	p.consume(lexer.TokenRBrace, "Expect '}' after struct body")

	return &ClassStmt{Name: nameTok.Lexeme, Superclass: parent, Mutable: mutable, Fields: fields, TypeParams: typeParams}
}

func (p *Parser) abstractDecl() Stmt {
	nameTok := p.consume(lexer.TokenIdent, "Expect abstract type name")
	var parent string
	if p.match(lexer.TokenLT) {
		parent = p.consume(lexer.TokenIdent, "Expect parent type name after '<'").Lexeme
	}
	return &AbstractStmt{Name: nameTok.Lexeme, Parent: parent}
}

func (p *Parser) enumDecl() Stmt {
	nameTok := p.consume(lexer.TokenIdent, "Expect enum name")
	var baseTy string
	if p.match(lexer.TokenColon) {
		baseTy = p.consume(lexer.TokenIdent, "Expect base type after ':'").Lexeme
	}
	p.consume(lexer.TokenLBrace, "Expect '{' before enum body")
	var members []EnumMemberDecl
	next := int64(0)
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		memberName := p.consume(lexer.TokenIdent, "Expect enum member name").Lexeme
		val := next
		if p.match(lexer.TokenEqual) {
			numTok := p.consume(lexer.TokenNumber, "Expect integer value after '='")
			parsed, _ := strconv.ParseInt(numTok.Lexeme, 10, 64)
			val = parsed
		}
		members = append(members, EnumMemberDecl{Name: memberName, Value: val})
		next = val + 1
		p.match(lexer.TokenComma)
	}
	p.consume(lexer.TokenRBrace, "Expect '}' after enum body")
	return &EnumStmt{Name: nameTok.Lexeme, BaseTy: baseTy, Members: members}
}

func (p *Parser) aliasDecl() Stmt {
	nameTok := p.consume(lexer.TokenIdent, "Expect alias name")
	p.consume(lexer.TokenEqual, "Expect '=' after alias name")
	targetTok := p.consume(lexer.TokenIdent, "Expect target type name")
	return &AliasStmt{Name: nameTok.Lexeme, Target: targetTok.Lexeme}
}

func (p *Parser) importStatement() Stmt {
	var path string
	var alias string

	if p.check(lexer.TokenString) {
		// import "path/to/module"
		pathTok := p.advance()
		path = pathTok.Lexeme
		// Scanner already removes quotes, so we use it as-is
	} else {
		// import module_name
		nameTok := p.consume(lexer.TokenIdent, "Expect module name")
		path = nameTok.Lexeme
	}

	// Check for alias
	if p.match(lexer.TokenAs) {
		aliasTok := p.consume(lexer.TokenIdent, "Expect alias name")
		alias = aliasTok.Lexeme
	}

	return &ImportStmt{Path: path, Alias: alias}
}

func (p *Parser) whileStatement() Stmt {
	condition := p.expression()
	p.consume(lexer.TokenLBrace, "Expect '{' before while body")
	body := p.blockStatements()
	p.consume(lexer.TokenRBrace, "Expect '}' after while body")
	return &WhileStmt{Condition: condition, Body: body}
}

func (p *Parser) forStatement() Stmt {
	// Check for for-in loop: for i in collection
	if p.checkNext(lexer.TokenIn) {
		variable := p.consume(lexer.TokenIdent, "Expect variable name").Lexeme
		p.consume(lexer.TokenIn, "Expect 'in'")
		collection := p.expression()
		p.consume(lexer.TokenLBrace, "Expect '{' before for body")
		body := p.blockStatements()
		p.consume(lexer.TokenRBrace, "Expect '}' after for body")
		return &ForInStmt{Variable: variable, Collection: collection, Body: body}
	}

	// Traditional for loop
	var init Stmt
	var condition Expr
	var update Expr

	p.consume(lexer.TokenLParen, "Expect '(' after 'for'")

	// Initialization
	if !p.check(lexer.TokenSemicolon) {
		if p.match(lexer.TokenLet) {
			nameTok := p.consume(lexer.TokenIdent, "Expect variable name")
			p.consume(lexer.TokenEqual, "Expect '='")
			expr := p.expression()
			init = &LetStmt{Name: nameTok.Lexeme, Expr: expr}
		} else {
			init = &ExpressionStmt{Expr: p.expression()}
		}
	}
	p.consume(lexer.TokenSemicolon, "Expect ';' after for loop initializer")

	// Condition
	if !p.check(lexer.TokenSemicolon) {
		condition = p.expression()
	}
	p.consume(lexer.TokenSemicolon, "Expect ';' after for loop condition")

	// Update
	if !p.check(lexer.TokenRParen) {
		update = p.expression()
	}
	p.consume(lexer.TokenRParen, "Expect ')' after for clauses")

	p.consume(lexer.TokenLBrace, "Expect '{' before for body")
	body := p.blockStatements()
	p.consume(lexer.TokenRBrace, "Expect '}' after for body")

	return &ForStmt{Init: init, Condition: condition, Update: update, Body: body}
}

func (p *Parser) blockStatements() []Stmt {
	var stmts []Stmt
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		stmts = append(stmts, p.topLevel())
	}
	return stmts
}

func (p *Parser) function() Stmt {
	nameTok := p.consume(lexer.TokenIdent, "Expect function name")
	p.consume(lexer.TokenLParen, "Expect '(' after function name")

	var params []string
	var paramTypes []string
	vararg := -1
	if !p.check(lexer.TokenRParen) {
		p.parseParam(&params, &paramTypes, &vararg)
		for p.match(lexer.TokenComma) {
			p.parseParam(&params, &paramTypes, &vararg)
		}
	}
	p.consume(lexer.TokenRParen, "Expect ')' after parameters")

	var typeParams []string
	if p.match(lexer.TokenWhere) {
		typeParams = append(typeParams, p.consume(lexer.TokenIdent, "Expect type parameter name").Lexeme)
		for p.match(lexer.TokenComma) {
			typeParams = append(typeParams, p.consume(lexer.TokenIdent, "Expect type parameter name").Lexeme)
		}
	}

	var returnType string
	if p.match(lexer.TokenColon) {
		returnType = p.consume(lexer.TokenIdent, "Expect return type after ':'").Lexeme
	}

	if p.match(lexer.TokenArrow) {
		expr := p.expression()
		body := []Stmt{&ReturnStmt{Value: expr}}
		return &FunctionStmt{
			Name:       nameTok.Lexeme,
			Params:     params,
			ParamTypes: paramTypes,
			TypeParams: typeParams,
			Vararg:     vararg,
			ReturnType: returnType,
			Body:       body,
		}
	}

	p.consume(lexer.TokenLBrace, "Expect '{' before function body")
	var body []Stmt
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		body = append(body, p.topLevel())
	}
	p.consume(lexer.TokenRBrace, "Expect '}' after function body")

	return &FunctionStmt{
		Name:       nameTok.Lexeme,
		Params:     params,
		ParamTypes: paramTypes,
		TypeParams: typeParams,
		Vararg:     vararg,
		ReturnType: returnType,
		Body:       body,
	}
}

// parseParam consumes one `name`, `name: Type`, or `name: Type...` parameter
// and appends it to params/paramTypes, recording a vararg index if seen.
func (p *Parser) parseParam(params *[]string, paramTypes *[]string, vararg *int) {
	nameTok := p.consume(lexer.TokenIdent, "Expect parameter name")
	var ty string
	if p.match(lexer.TokenColon) {
		ty = p.consume(lexer.TokenIdent, "Expect parameter type after ':'").Lexeme
	}
	if p.match(lexer.TokenDotDot) {
		// `Type...` scans as DotDot (the first two dots) then Dot (the third).
		p.match(lexer.TokenDot)
		*vararg = len(*params)
	}
	*params = append(*params, nameTok.Lexeme)
	*paramTypes = append(*paramTypes, ty)
}

// --- Expression Parsing with Precedence ---
func (p *Parser) expression() Expr {
	return p.parseTernary()
}

func (p *Parser) parseTernary() Expr {
	cond := p.parseRange()
	if p.match(lexer.TokenQuestion) {
		then := p.parseTernary()
		p.consume(lexer.TokenColon, "Expect ':' in ternary expression")
		els := p.parseTernary()
		return &TernaryExpr{Cond: cond, Then: then, Else: els}
	}
	return cond
}

func (p *Parser) parseRange() Expr {
	start := p.parseBinary(0)
	if p.match(lexer.TokenDotDot) {
		mid := p.parseBinary(0)
		if p.match(lexer.TokenDotDot) {
			stop := p.parseBinary(0)
			return &RangeExpr{Start: start, Step: mid, Stop: stop}
		}
		return &RangeExpr{Start: start, Stop: mid}
	}
	return start
}

func (p *Parser) parseBinary(minPrec int) Expr {
	left := p.parseUnary()
	for {
		tok := p.peek()
		prec, ok := precedence[tok.Type]
		if !ok || prec < minPrec {
			break
		}
		p.advance()
		right := p.parseBinary(prec + 1)
		left = &Binary{
			Left:     left,
			Operator: tok.Lexeme,
			Right:    right,
		}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	return p.unary()
}

func (p *Parser) unary() Expr {
	if p.match(lexer.TokenNot) {
		operator := p.previous().Lexeme
		operand := p.unary()
		return &UnaryExpr{Operator: operator, Operand: operand}
	}
	if p.match(lexer.TokenMinus) {
		operator := p.previous().Lexeme
		operand := p.unary()
		return &UnaryExpr{Operator: operator, Operand: operand}
	}
	return p.parseCall()
}

func (p *Parser) parseCall() Expr {
	expr := p.primary()
	for {
		if p.match(lexer.TokenLParen) {
			expr = p.finishCall(expr)
		} else if p.match(lexer.TokenLBracket) {
			// Array/map indexing
			index := p.expression()
			p.consume(lexer.TokenRBracket, "Expect ']' after index")
			expr = &IndexExpr{Object: expr, Index: index}
		} else if p.match(lexer.TokenDot) {
			nameTok := p.consume(lexer.TokenIdent, "Expect property name after '.'")
			expr = &PropertyExpr{Object: expr, Property: nameTok.Lexeme}
		} else {
			break
		}
	}
	return expr
}

func (p *Parser) finishCall(callee Expr) Expr {
	args := []Expr{}
	if !p.check(lexer.TokenRParen) {
		for {
			args = append(args, p.expression())
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRParen, "Expect ')' after arguments")
	return &CallExpr{Callee: callee, Args: args}
}

func (p *Parser) primary() Expr {
	tok := p.advance()
	switch tok.Type {
	case lexer.TokenString:
		// Scanner already removes quotes and processes escape sequences
		if strings.Contains(tok.Lexeme, "${") {
			return p.parseInterpolation(tok.Lexeme)
		}
		return &Literal{Value: tok.Lexeme}
	case lexer.TokenNumber:
		if strings.Contains(tok.Lexeme, ".") {
			var val float64
			fmt.Sscanf(tok.Lexeme, "%f", &val)
			return &Literal{Value: val}
		}
		iv, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			var val float64
			fmt.Sscanf(tok.Lexeme, "%f", &val)
			return &Literal{Value: val}
		}
		return &Literal{Value: iv}
	case lexer.TokenIdent:
		return &Variable{Name: tok.Lexeme}
	case lexer.TokenNull:
		return &Literal{Value: nil}
	case lexer.TokenTrue:
		return &Literal{Value: true}
	case lexer.TokenFalse:
		return &Literal{Value: false}
	case lexer.TokenFn:
		return p.parseLambda()
	case lexer.TokenLBracket:
		// Array literal: [1, 2, 3]
		return p.parseArrayLiteral()
	case lexer.TokenLBrace:
		// Could be map literal or block expression
		// Peek ahead to determine
		if p.isMapLiteral() {
			return p.parseMapLiteral()
		}
		// Otherwise it's a block expression
		p.current-- // Back up
		return p.parseBlockExpr()
	case lexer.TokenLParen:
		// Parenthesized expression
		expr := p.expression()
		p.consume(lexer.TokenRParen, "Expect ')' after expression")
		return expr
	case lexer.TokenNot:
		// Unary not: !expr
		operand := p.unary()
		return &UnaryExpr{Operator: "!", Operand: operand}
	case lexer.TokenMinus:
		// Unary minus: -expr
		operand := p.unary()
		return &UnaryExpr{Operator: "-", Operand: operand}
	case lexer.TokenIf:
		// Parse: if cond { then } else { else }
		cond := p.parseCondition()
		thenBranch := p.parseBlockExpr()
		var elseBranch Expr = nil
		if p.match(lexer.TokenElse) {
			if p.check(lexer.TokenIf) {
				// else if - parse as nested if expression
				elseBranch = p.primary()
			} else {
				// else block
				elseBranch = p.parseBlockExpr()
			}
		}
		return &IfExpr{
			Cond:       cond,
			ThenBranch: thenBranch,
			ElseBranch: elseBranch,
		}
	default:
		loc := diagnostics.SourceLocation{File: tok.File, Line: tok.Line, Column: tok.Column}
		diag := diagnostics.New(diagnostics.KindSyntax, fmt.Sprintf("unexpected token in expression: %q", tok.Lexeme)).WithLocation(loc)
		if p.sourceLines != nil && tok.Line > 0 && tok.Line <= len(p.sourceLines) {
			diag = diag.WithSource(p.sourceLines[tok.Line-1])
		}
		panic(diag)
	}
}

// parseLambda handles `fn(x, y) => expr`. `=>` is always required; a block
// body is written `fn(x) => { ... }` and parses as a block expression.
func (p *Parser) parseLambda() Expr {
	p.consume(lexer.TokenLParen, "Expect '(' after 'fn' in lambda")
	var params []string
	if !p.check(lexer.TokenRParen) {
		params = append(params, p.consume(lexer.TokenIdent, "Expect parameter name").Lexeme)
		for p.match(lexer.TokenComma) {
			params = append(params, p.consume(lexer.TokenIdent, "Expect parameter name").Lexeme)
		}
	}
	p.consume(lexer.TokenRParen, "Expect ')' after lambda parameters")
	p.consume(lexer.TokenArrow, "Expect '=>' after lambda parameters")
	body := p.expression()
	return &LambdaExpr{Params: params, Body: body}
}

// parseInterpolation splits a scanned string literal on ${...} markers. The
// scanner hands the whole literal through unprocessed, so the split (and any
// nested expression re-lexing) happens here rather than in the lexer, the
// same division of labor the teacher's lexer used for its own templates.
func (p *Parser) parseInterpolation(raw string) Expr {
	var parts []Expr
	i := 0
	for i < len(raw) {
		start := strings.Index(raw[i:], "${")
		if start == -1 {
			parts = append(parts, &Literal{Value: raw[i:]})
			break
		}
		start += i
		if start > i {
			parts = append(parts, &Literal{Value: raw[i:start]})
		}
		end := strings.Index(raw[start:], "}")
		if end == -1 {
			parts = append(parts, &Literal{Value: raw[start:]})
			break
		}
		end += start
		inner := raw[start+2 : end]
		innerTokens := lexer.NewScanner(inner).ScanTokens()
		innerParser := NewParser(innerTokens)
		parts = append(parts, innerParser.expression())
		i = end + 1
	}
	return &InterpolationExpr{Parts: parts}
}

func (p *Parser) parseArrayLiteral() Expr {
	elements := []Expr{}
	for !p.check(lexer.TokenRBracket) && !p.isAtEnd() {
		elements = append(elements, p.expression())
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	p.consume(lexer.TokenRBracket, "Expect ']' after array elements")
	return &ArrayExpr{Elements: elements}
}

func (p *Parser) parseMapLiteral() Expr {
	keys := []Expr{}
	values := []Expr{}

	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		// Parse key
		key := p.expression()
		keys = append(keys, key)

		// Expect colon
		p.consume(lexer.TokenColon, "Expect ':' after map key")

		// Parse value
		value := p.expression()
		values = append(values, value)

		// Check for comma
		if !p.match(lexer.TokenComma) {
			break
		}
	}

	p.consume(lexer.TokenRBrace, "Expect '}' after map elements")
	return &MapExpr{Keys: keys, Values: values}
}

func (p *Parser) isMapLiteral() bool {
	// Look ahead to see if this is a map literal
	// Map literals have the pattern: { key: value, ... }
	saved := p.current
	defer func() { p.current = saved }()

	// Skip whitespace and check for key:value pattern
	if p.check(lexer.TokenRBrace) {
		return true // Empty map
	}

	// Try to parse a key
	if !p.match(lexer.TokenString) && !p.match(lexer.TokenIdent) && !p.match(lexer.TokenNumber) {
		return false
	}

	// Check for colon
	return p.check(lexer.TokenColon)
}

func (p *Parser) previous() lexer.Token {
	return p.tokens[p.current-1]
}

func (p *Parser) parseCondition() Expr {
	// Simply parse an expression - the expression parser will handle everything
	return p.expression()
}

func (p *Parser) parseBlockExpr() Expr {
	p.consume(lexer.TokenLBrace, "Expect '{' to start block")
	var stmts []Stmt
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		stmts = append(stmts, p.topLevel())
	}
	p.consume(lexer.TokenRBrace, "Expect '}' after block")
	return &BlockExpr{Stmts: stmts}
}

// --- Utility methods ---

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, msg string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	// Create error with location information
	currentToken := p.peek()
	loc := diagnostics.SourceLocation{File: currentToken.File, Line: currentToken.Line, Column: currentToken.Column}
	diag := diagnostics.New(diagnostics.KindSyntax, fmt.Sprintf("%s (got %q)", msg, currentToken.Lexeme)).WithLocation(loc)

	// Add source line if available
	if p.sourceLines != nil && currentToken.Line > 0 && currentToken.Line <= len(p.sourceLines) {
		diag = diag.WithSource(p.sourceLines[currentToken.Line-1])
	}

	panic(diag)
}

func (p *Parser) check(t lexer.TokenType) bool {
	if p.isAtEnd() {
		return false
	}
	return p.peek().Type == t
}

func (p *Parser) checkNext(t lexer.TokenType) bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.current+1].Type == t
}

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.tokens[p.current-1]
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == lexer.TokenEOF
}
