// shared/registry/constants.go
package registry

const (
	// RedisRegistryHashPrefix prefixes the hash holding one service type's
	// instances: "services:<serviceType>", field = instance id.
	RedisRegistryHashPrefix = "services:"

	// ServiceTypeGame is the type the game service registers under.
	ServiceTypeGame = "rpg-game-service"
	// ServiceTypeDungeonHost is the default type dungeon host servers register under.
	ServiceTypeDungeonHost = "dungeon-host"
)

func hashKey(serviceType string) string {
	return RedisRegistryHashPrefix + serviceType
}
