package output

// Printer renders command results for the terminal.
type Printer interface {
	Print(v any) error
}
