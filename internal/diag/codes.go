package diag

// Diagnostic codes, grouped by phase.
const (
	// Load and run-level (E0xx)
	CodeGeneric    = "E001" // Generic/unknown error
	CodeScanError  = "E002" // Directory scan error
	CodeNoFiles    = "E003" // No source files found
	CodeReadFailed = "E004" // Source file could not be read
	CodeNotFound   = "E005" // Path not found
	CodeCancelled  = "E006" // Run cancelled or timed out
	CodeStemClash  = "E007" // Two source files share an artifact stem
	CodeSkipped    = "E010" // Unit skipped after a fail-fast stop

	// Lexical (E20x)
	CodeUnexpectedChar     = "E201" // Character not valid in source
	CodeUnterminatedString = "E202" // String literal without closing quote
	CodeBadEscape          = "E203" // Unknown escape sequence
	CodeUnterminatedBlock  = "E204" // Block comment without closing */
	CodeBadNumber          = "E205" // Malformed or out-of-range number

	// Syntax (E21x)
	CodeUnexpectedToken = "E210" // Token not valid here
	CodeExpectedDecl    = "E211" // Top-level declaration expected
	CodeBadPattern      = "E212" // Malformed pattern
	CodeEmptyMatch      = "E213" // match without cases

	// Name resolution (E3xx)
	CodeDuplicateModule = "E301" // Module declared by an earlier unit
	CodeDuplicateName   = "E302" // Name declared twice in one scope
	CodeUnknownName     = "E303" // Value name not in scope
	CodeUnknownType     = "E304" // Type name not in scope
	CodeUnknownModule   = "E305" // Import of an undeclared module
	CodeUnknownImport   = "E306" // Imported name not declared by the module
	CodeTypeArgCount    = "E307" // Wrong number of type arguments
	CodeAliasCycle      = "E308" // Type alias refers to itself
	CodeUnknownCtor     = "E309" // Constructor name not in scope

	// Types (E4xx)
	CodeTypeMismatch    = "E401" // Expression type differs from expected
	CodeArgCount        = "E402" // Call with wrong number of arguments
	CodeNotFunction     = "E403" // Call of a non-function value
	CodeUnknownField    = "E404" // Field selection on a type without that field
	CodeLambdaParamType = "E405" // Lambda parameter type cannot be determined
	CodeCannotInfer     = "E406" // Type variable left unsolved
	CodeConditionType   = "E407" // if/guard condition is not Boolean
	CodePatternArity    = "E408" // Constructor pattern with wrong arity
	CodeOperandType     = "E409" // Operator applied to unsupported operand types
	CodeInfiniteType    = "E410" // Unification would build an infinite type
	CodeNonExhaustive   = "E450" // match does not cover every enum case (warning)

	// Encode (E5xx)
	CodeUnsupportedConstruct = "E501" // Construct not representable in the MIR schema
	CodeEncodeFailed         = "E502" // Encoder failure

	// Emit (E6xx)
	CodeEmitFailed = "E601" // Platform emitter failed

	// I/O (E7xx)
	CodeWriteFailed = "E701" // Artifact could not be written
)
