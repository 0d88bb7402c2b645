package model

// Environment identifies one of the two managed cloud environments.
// The concrete cloud behind each side (Azure, GCP, ...) is configuration,
// not code.
type Environment string

const (
	EnvironmentPrimary   Environment = "primary"
	EnvironmentSecondary Environment = "secondary"
)

// Valid reports whether the environment is one of the two known values.
func (e Environment) Valid() bool {
	return e == EnvironmentPrimary || e == EnvironmentSecondary
}

// Other returns the opposite environment.
func (e Environment) Other() Environment {
	if e == EnvironmentPrimary {
		return EnvironmentSecondary
	}
	return EnvironmentPrimary
}

// Direction identifies a failover direction between the two environments.
type Direction string

const (
	DirectionPrimaryToSecondary Direction = "primary_to_secondary"
	DirectionSecondaryToPrimary Direction = "secondary_to_primary"
)

// DirectionTo returns the direction that makes target the active environment.
func DirectionTo(target Environment) Direction {
	if target == EnvironmentPrimary {
		return DirectionSecondaryToPrimary
	}
	return DirectionPrimaryToSecondary
}

// Source returns the environment traffic moves away from.
func (d Direction) Source() Environment {
	if d == DirectionPrimaryToSecondary {
		return EnvironmentPrimary
	}
	return EnvironmentSecondary
}

// Target returns the environment traffic moves to.
func (d Direction) Target() Environment {
	return d.Source().Other()
}

// Reverse returns the opposite direction, used for rollback.
func (d Direction) Reverse() Direction {
	if d == DirectionPrimaryToSecondary {
		return DirectionSecondaryToPrimary
	}
	return DirectionPrimaryToSecondary
}
