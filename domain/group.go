package domain

type Set map[UserID]struct{}

// Group is owned by an external membership service.
// The relay only reads it to authorize senders and compute fan-out targets.
type Group struct {
	ID      GroupID
	Admin   UserID
	Name    string
	Members Set
}

func NewGroup(id GroupID, admin UserID, name string, members ...UserID) Group {
	g := Group{ID: id, Admin: admin, Name: name, Members: make(Set)}
	g.Members[admin] = struct{}{}
	for _, m := range members {
		g.Members[m] = struct{}{}
	}
	return g
}

func (g Group) HasMember(user UserID) bool {
	_, ok := g.Members[user]
	return ok
}
