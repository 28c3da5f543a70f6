package runstate

// FunctionState is a bitmask of the per-function states named in spec §3/§4.2.
// A function may hold more than one flag at once - e.g. Running while
// already Ready again because its inputs were refilled before its previous
// job returned.
type FunctionState uint8

const (
	// Waiting means the function has not yet satisfied all of its inputs.
	Waiting FunctionState = 1 << iota
	// Ready means every input has a value and the function is not Blocked.
	Ready
	// Running means at least one job for this function is in flight.
	Running
	// Blocked means at least one Block names this function as blocked.
	Blocked
	// Completed means the function returned RunAgain=false and will never
	// be dispatched again.
	Completed
)

func (s FunctionState) has(f FunctionState) bool { return s&f != 0 }

// String renders a human-readable flag list, for logs and debugger output.
func (s FunctionState) String() string {
	if s == 0 {
		return "-"
	}
	out := ""
	add := func(flag FunctionState, name string) {
		if s.has(flag) {
			if out != "" {
				out += "|"
			}
			out += name
		}
	}
	add(Waiting, "Waiting")
	add(Ready, "Ready")
	add(Running, "Running")
	add(Blocked, "Blocked")
	add(Completed, "Completed")
	return out
}
