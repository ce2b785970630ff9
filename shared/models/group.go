// shared/models/group.go
package models

// GroupView is the API representation of a party.
type GroupView struct {
	ID      string   `json:"id"`
	Leader  string   `json:"leader"`
	Members []string `json:"members"` // join order, leader included
	Size    int      `json:"size"`
	MaxSize int      `json:"maxSize"`
}

// InstanceView is the API representation of a running dungeon instance.
type InstanceView struct {
	ID        string   `json:"id"`
	DungeonID string   `json:"dungeonId"`
	Host      string   `json:"host"`
	Members   []string `json:"members"`
}
