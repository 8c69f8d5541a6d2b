package tracker

// Action names a mutating operation as recorded in the day log and the
// visits table.
type Action string

const (
	ActionCheckIn  Action = "checkin"
	ActionCheckOut Action = "checkout"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
)

// Command is the closed set of operator commands the engine consumes.
// The front end parses free text into one of these variants; the engine
// performs all type validation.
type Command interface {
	isCommand()
}

// CheckInCmd records a bike arriving.
type CheckInCmd struct {
	Tag   string
	Time  string
	Force bool
}

// CheckOutCmd records a bike being reclaimed.
type CheckOutCmd struct {
	Tag   string
	Time  string
	Force bool
}

// EditCmd rewrites one side of an existing stay.
type EditCmd struct {
	Tag        string
	Field      Field
	Time       string
	Occurrence int
	Force      bool
}

// DeleteCmd removes a stay, or its check-out only.
type DeleteCmd struct {
	Tag        string
	Field      Field
	Occurrence int
	Confirmed  bool
}

// QueryCmd lists a tag's stays.
type QueryCmd struct {
	Tag string
}

func (CheckInCmd) isCommand()  {}
func (CheckOutCmd) isCommand() {}
func (EditCmd) isCommand()     {}
func (DeleteCmd) isCommand()   {}
func (QueryCmd) isCommand()    {}

// Result is the outcome of a successfully applied command.
type Result struct {
	Action Action
	// Stay is the affected stay (a copy) for mutating commands.
	Stay *Stay
	// Removed is set when the stay's persisted row must be deleted
	// rather than upserted.
	Removed bool
	// Stays holds the query response.
	Stays []Stay
}

// Mutating reports whether the result changed day state.
func (r Result) Mutating() bool { return r.Action != "" }

// Apply dispatches a command to the matching engine operation. Keeping
// dispatch in one place keeps validation centralized and testable apart
// from text parsing.
func (e *Engine) Apply(cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case CheckInCmd:
		stay, err := e.CheckIn(c.Tag, c.Time, c.Force)
		if err != nil {
			return Result{}, err
		}
		return Result{Action: ActionCheckIn, Stay: stay.clone()}, nil
	case CheckOutCmd:
		stay, err := e.CheckOut(c.Tag, c.Time, c.Force)
		if err != nil {
			return Result{}, err
		}
		return Result{Action: ActionCheckOut, Stay: stay.clone()}, nil
	case EditCmd:
		stay, err := e.Edit(c.Tag, c.Field, c.Time, c.Occurrence, c.Force)
		if err != nil {
			return Result{}, err
		}
		return Result{Action: ActionEdit, Stay: stay.clone()}, nil
	case DeleteCmd:
		stay, err := e.Delete(c.Tag, c.Field, c.Occurrence, c.Confirmed)
		if err != nil {
			return Result{}, err
		}
		// Deleting only the check-out keeps the row alive as an open
		// stay; deleting the check-in removes the row entirely.
		return Result{Action: ActionDelete, Stay: stay.clone(), Removed: c.Field != FieldOut}, nil
	case QueryCmd:
		stays, err := e.Query(c.Tag)
		if err != nil {
			return Result{}, err
		}
		return Result{Stays: stays}, nil
	default:
		panic("tracker: unknown command type")
	}
}
