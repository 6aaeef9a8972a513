package dsl

import "errors"

// Code is the closed set of diagnostic kinds.
type Code string

const (
	UnexpectedToken         Code = "UNEXPECTED_TOKEN"
	IDNotFound              Code = "ID_NOT_FOUND"
	DuplicateID             Code = "DUPLICATE_ID"
	WrongParamsNum          Code = "WRONG_PARAMS_NUM"
	OutOfRange              Code = "OUT_OF_RANGE"
	AbilityNotDefineInAgent Code = "ABILITY_NOT_DEFINE_IN_AGENT"
	LibraryCannotBeAssigned Code = "LIBRARY_CANNOT_BE_ASSIGNED"
)

// Stage is the pipeline stage that produced an error.
type Stage string

const (
	StageLexer       Stage = "LexerError"
	StageParser      Stage = "ParserError"
	StageSemantic    Stage = "SemanticError"
	StageInterpreter Stage = "InterpreterError"
)

// Error is a diagnostic carrying the offending token.
type Error struct {
	Stage Stage
	Code  Code
	Token Token

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	return string(e.Code) + " -> " + e.Token.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by code and, when set on the target, by stage.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Stage == "" || t.Stage == e.Stage
}

// Sentinels for errors.Is matching.
var (
	ErrUnexpectedToken         = &Error{Code: UnexpectedToken}
	ErrIDNotFound              = &Error{Code: IDNotFound}
	ErrDuplicateID             = &Error{Code: DuplicateID}
	ErrWrongParamsNum          = &Error{Code: WrongParamsNum}
	ErrOutOfRange              = &Error{Code: OutOfRange}
	ErrAbilityNotDefineInAgent = &Error{Code: AbilityNotDefineInAgent}
	ErrLibraryCannotBeAssigned = &Error{Code: LibraryCannotBeAssigned}
)

// StageOf returns the stage of the first *Error in err's tree.
func StageOf(err error) (Stage, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage, true
	}
	return "", false
}

func semanticError(code Code, tok Token) error {
	return &Error{Stage: StageSemantic, Code: code, Token: tok}
}

func runtimeError(code Code, tok Token, cause error) error {
	return &Error{Stage: StageInterpreter, Code: code, Token: tok, Err: cause}
}
