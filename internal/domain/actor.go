package domain

// SystemActorID identifies automated transitions such as inactivity closes.
const SystemActorID = "system"

// Actor is whoever triggers a transition: a staff member or the system.
type Actor struct {
	ID      string
	Name    string
	IsStaff bool
}

// SystemActor returns the synthetic actor used by background sweeps.
func SystemActor() Actor {
	return Actor{ID: SystemActorID, Name: SystemActorID, IsStaff: true}
}

// IsSystem reports whether the actor is the synthetic system identity.
func (a Actor) IsSystem() bool {
	return a.ID == SystemActorID
}

// DisplayName prefers the readable name and falls back to the id.
func (a Actor) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}
