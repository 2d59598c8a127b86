package domain

// Collection names an entity family. The same name is used for the remote
// table, the local store key and the change channel.
type Collection string

const (
	Banners Collection = "banners"
	Videos  Collection = "videos"
	Notices Collection = "notices"
	Promos  Collection = "promos"
)

func (c Collection) Table() string { return string(c) }

func (c Collection) LocalKey() string { return string(c) }

// Channel is the LISTEN/NOTIFY channel the table triggers publish on.
func (c Collection) Channel() string { return string(c) + "_changes" }
