package domain

// Direction is the route of an order. The service runs a single corridor,
// so the set is closed.
type Direction string

const (
	DirectionBeshariqToshkent Direction = "BESHARIQ_TOSHKENT"
	DirectionToshkentBeshariq Direction = "TOSHKENT_BESHARIQ"
)

// directionCodes maps the wire codes carried in button payloads.
var directionCodes = map[string]Direction{
	"beshariq_toshkent": DirectionBeshariqToshkent,
	"toshkent_beshariq": DirectionToshkentBeshariq,
}

// ParseDirection resolves a wire code to a Direction.
func ParseDirection(code string) (Direction, bool) {
	d, ok := directionCodes[code]
	return d, ok
}

// Code returns the wire code used in button payloads.
func (d Direction) Code() string {
	switch d {
	case DirectionBeshariqToshkent:
		return "beshariq_toshkent"
	case DirectionToshkentBeshariq:
		return "toshkent_beshariq"
	}
	return ""
}

// Label returns the human-readable route name.
func (d Direction) Label() string {
	switch d {
	case DirectionBeshariqToshkent:
		return "Beshariq-Toshkent"
	case DirectionToshkentBeshariq:
		return "Toshkent-Beshariq"
	}
	return string(d)
}

// Valid reports whether d is one of the recognized routes.
func (d Direction) Valid() bool {
	return d == DirectionBeshariqToshkent || d == DirectionToshkentBeshariq
}
