package palette

// defaultEntries are the map colors of the wool, terracotta and concrete
// families, sixteen standard hues each.
var defaultEntries = []Entry{
	// Wool
	{"minecraft:white_wool", 233, 236, 236},
	{"minecraft:light_gray_wool", 142, 142, 134},
	{"minecraft:gray_wool", 62, 68, 71},
	{"minecraft:black_wool", 20, 21, 25},
	{"minecraft:brown_wool", 114, 71, 40},
	{"minecraft:red_wool", 161, 39, 34},
	{"minecraft:orange_wool", 240, 118, 19},
	{"minecraft:yellow_wool", 248, 198, 39},
	{"minecraft:lime_wool", 112, 185, 25},
	{"minecraft:green_wool", 84, 109, 27},
	{"minecraft:cyan_wool", 21, 137, 145},
	{"minecraft:light_blue_wool", 58, 175, 217},
	{"minecraft:blue_wool", 53, 57, 157},
	{"minecraft:purple_wool", 121, 42, 172},
	{"minecraft:magenta_wool", 189, 68, 179},
	{"minecraft:pink_wool", 237, 141, 172},

	// Terracotta
	{"minecraft:white_terracotta", 209, 177, 161},
	{"minecraft:light_gray_terracotta", 135, 107, 98},
	{"minecraft:gray_terracotta", 57, 41, 35},
	{"minecraft:black_terracotta", 37, 22, 16},
	{"minecraft:brown_terracotta", 76, 50, 35},
	{"minecraft:red_terracotta", 142, 60, 46},
	{"minecraft:orange_terracotta", 159, 82, 36},
	{"minecraft:yellow_terracotta", 186, 133, 36},
	{"minecraft:lime_terracotta", 103, 117, 53},
	{"minecraft:green_terracotta", 76, 82, 42},
	{"minecraft:cyan_terracotta", 87, 92, 92},
	{"minecraft:light_blue_terracotta", 112, 108, 138},
	{"minecraft:blue_terracotta", 76, 62, 92},
	{"minecraft:purple_terracotta", 122, 73, 88},
	{"minecraft:magenta_terracotta", 149, 87, 108},
	{"minecraft:pink_terracotta", 160, 77, 78},

	// Concrete
	{"minecraft:white_concrete", 207, 213, 214},
	{"minecraft:light_gray_concrete", 125, 125, 115},
	{"minecraft:gray_concrete", 55, 58, 62},
	{"minecraft:black_concrete", 8, 10, 15},
	{"minecraft:brown_concrete", 96, 60, 32},
	{"minecraft:red_concrete", 142, 33, 33},
	{"minecraft:orange_concrete", 224, 97, 1},
	{"minecraft:yellow_concrete", 241, 175, 21},
	{"minecraft:lime_concrete", 94, 169, 24},
	{"minecraft:green_concrete", 73, 91, 36},
	{"minecraft:cyan_concrete", 21, 119, 136},
	{"minecraft:light_blue_concrete", 36, 137, 199},
	{"minecraft:blue_concrete", 45, 47, 143},
	{"minecraft:purple_concrete", 100, 32, 156},
	{"minecraft:magenta_concrete", 169, 48, 159},
	{"minecraft:pink_concrete", 213, 101, 143},
}

// Default returns the built-in 48 block palette. Each call builds a fresh
// value; callers are expected to build it once and share it.
func Default() *Palette {
	return MustNew(defaultEntries)
}

// DefaultEntries returns a copy of the built-in palette source entries.
func DefaultEntries() []Entry {
	return append([]Entry(nil), defaultEntries...)
}
