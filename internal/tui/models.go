package tui

type View int

const (
	ViewSearch View = iota
	ViewReader
	ViewSolutions
	ViewSolution
	ViewCommunity
)

func (v View) String() string {
	switch v {
	case ViewSearch:
		return "search"
	case ViewReader:
		return "reader"
	case ViewSolutions:
		return "solutions"
	case ViewSolution:
		return "solution"
	case ViewCommunity:
		return "community"
	default:
		return "unknown"
	}
}
