package models

// User is the read-model projection of a village member. The authentication
// subsystem owns the authoritative record; this service only reads it to
// resolve display fields and the village authorization predicate.
type User struct {
	ID        string `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	FullName  string `db:"full_name" json:"full_name"`
	VillageID string `db:"village_id" json:"village_id"`
	Active    bool   `db:"active" json:"active"`
}
