package scoring

// Level is a strength-level classification bucket.
type Level uint8

const (
	Beginner Level = iota
	Novice
	Intermediate
	Advanced
	Elite
	WorldClass
)

func (l Level) String() string {
	switch l {
	case Beginner:
		return "Beginner"
	case Novice:
		return "Novice"
	case Intermediate:
		return "Intermediate"
	case Advanced:
		return "Advanced"
	case Elite:
		return "Elite"
	case WorldClass:
		return "World Class"
	default:
		return "Beginner"
	}
}

// LiftType selects which per-lift threshold table StrengthLevel uses.
type LiftType uint8

const (
	LiftSquat LiftType = iota
	LiftBench
	LiftDeadlift
	LiftTotal
)

// ParseLiftType maps the request's lift_type string onto LiftType.
func ParseLiftType(s string) (LiftType, bool) {
	switch s {
	case "squat":
		return LiftSquat, true
	case "bench":
		return LiftBench, true
	case "deadlift":
		return LiftDeadlift, true
	case "total":
		return LiftTotal, true
	default:
		return LiftTotal, false
	}
}

// thresholds[lift] gives the DOTS score at which the classification
// moves from Beginner→Novice→...→Elite; anything at or above the last
// entry is World Class. Reproduced bit-exactly from the client-side
// scoring library's fallback table.
var thresholds = map[LiftType][5]float64{
	LiftSquat:    {150.0, 225.0, 300.0, 375.0, 450.0},
	LiftBench:    {100.0, 150.0, 200.0, 250.0, 300.0},
	LiftDeadlift: {175.0, 262.5, 350.0, 437.5, 525.0},
	LiftTotal:    {200.0, 300.0, 400.0, 500.0, 600.0},
}

// StrengthLevel classifies a DOTS score for the given lift type. Sex does
// not change the thresholds (DOTS is already gender-normalized); the
// parameter is accepted for API symmetry with the scoring functions and
// to allow a future per-sex table without changing call sites.
func StrengthLevel(dots float64, lift LiftType, _ Sex) Level {
	t := thresholds[lift]
	switch {
	case dots < t[0]:
		return Beginner
	case dots < t[1]:
		return Novice
	case dots < t[2]:
		return Intermediate
	case dots < t[3]:
		return Advanced
	case dots < t[4]:
		return Elite
	default:
		return WorldClass
	}
}
