package sqlite

// Times are stored as UTC unix nanoseconds so range filters and ordering
// compare numerically.

type userModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	Email     string `gorm:"uniqueIndex;not null"`
	CreatedAt int64  `gorm:"autoCreateTime:nano"`
}

func (userModel) TableName() string { return "users" }

type profileModel struct {
	UserID    string  `gorm:"primaryKey;size:36"`
	Username  *string `gorm:"uniqueIndex"`
	UpdatedAt int64   `gorm:"autoUpdateTime:nano"`
}

func (profileModel) TableName() string { return "profiles" }

type playerModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	FullName  string `gorm:"not null"`
	NameKey   string `gorm:"not null;uniqueIndex:idx_players_name_league"`
	League    string `gorm:"not null;uniqueIndex:idx_players_name_league"`
	CreatedAt int64  `gorm:"autoCreateTime:nano"`
}

func (playerModel) TableName() string { return "players" }

type slanderModel struct {
	ID          int64   `gorm:"primaryKey;autoIncrement"`
	Text        string  `gorm:"not null"`
	PlayerID    *int64  `gorm:"index"`
	SubmittedBy *string `gorm:"size:36"`
	CreatedAt   int64   `gorm:"index;autoCreateTime:nano"`
}

func (slanderModel) TableName() string { return "slander_names" }

type voteModel struct {
	UserID    string `gorm:"primaryKey;size:36"`
	SlanderID int64  `gorm:"primaryKey;index"`
	Vote      int    `gorm:"not null"`
	CreatedAt int64  `gorm:"index;autoCreateTime:nano"`
}

func (voteModel) TableName() string { return "votes" }

type ledgerEventModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Kind        string `gorm:"not null"`
	UserID      string `gorm:"size:36;not null"`
	SlanderID   int64  `gorm:"not null"`
	Value       int
	Payload     []byte
	CreatedAt   int64  `gorm:"autoCreateTime:nano"`
	PublishedAt *int64 `gorm:"index"`
}

func (ledgerEventModel) TableName() string { return "ledger_events" }

var models = []any{
	&userModel{},
	&profileModel{},
	&playerModel{},
	&slanderModel{},
	&voteModel{},
	&ledgerEventModel{},
}
