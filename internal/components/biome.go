package components

// BiomeAgent is implemented by whichever component maintains
// biome-partitioned state. The core routes biome management calls to the
// unique component implementing it.
type BiomeAgent interface {
	CreateBiome(name string) error
	DeleteBiome(name string) error
	RenameBiome(oldName, newName string) error
	BiomeList() []string
}
