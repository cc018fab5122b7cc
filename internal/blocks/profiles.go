package blocks

import "fmt"

type ProfileName string

const (
	ProfileLegacy112     ProfileName = "mc_1_12_legacy"
	ProfileNamespaced116 ProfileName = "mc_1_16_namespaced"
)

func ParseProfile(s string) (ProfileName, error) {
	switch ProfileName(s) {
	case ProfileLegacy112, ProfileNamespaced116:
		return ProfileName(s), nil
	case "":
		return ProfileLegacy112, nil
	}
	return "", fmt.Errorf("unknown block profile %q", s)
}

type profileTable struct {
	namespaced map[string]string
	legacy     map[string]string
}

// Shared namespaced ids; each maps to itself.
var commonNamespaced = []string{
	"minecraft:air",
	"minecraft:stone",
	"minecraft:granite",
	"minecraft:diorite",
	"minecraft:andesite",
	"minecraft:dirt",
	"minecraft:grass_block",
	"minecraft:cobblestone",
	"minecraft:mossy_cobblestone",
	"minecraft:bedrock",
	"minecraft:sand",
	"minecraft:gravel",
	"minecraft:sandstone",
	"minecraft:oak_planks",
	"minecraft:spruce_planks",
	"minecraft:birch_planks",
	"minecraft:jungle_planks",
	"minecraft:water",
	"minecraft:glass",
	"minecraft:ice",
	"minecraft:bricks",
	"minecraft:stone_bricks",
	"minecraft:obsidian",
	"minecraft:white_wool",
	"minecraft:oak_leaves",
	"minecraft:spruce_leaves",
}

var legacy112 = map[string]string{
	"0:0":  "minecraft:air",
	"1:0":  "minecraft:stone",
	"1:1":  "minecraft:granite",
	"1:3":  "minecraft:diorite",
	"1:5":  "minecraft:andesite",
	"2:0":  "minecraft:grass_block",
	"3:0":  "minecraft:dirt",
	"4:0":  "minecraft:cobblestone",
	"5:0":  "minecraft:oak_planks",
	"5:1":  "minecraft:spruce_planks",
	"5:2":  "minecraft:birch_planks",
	"5:3":  "minecraft:jungle_planks",
	"7:0":  "minecraft:bedrock",
	"8:0":  "minecraft:water",
	"9:0":  "minecraft:water",
	"12:0": "minecraft:sand",
	"13:0": "minecraft:gravel",
	"17:0": "minecraft:oak_log",
	"17:1": "minecraft:spruce_log",
	"17:2": "minecraft:birch_log",
	"18:0": "minecraft:oak_leaves",
	"18:1": "minecraft:spruce_leaves",
	"20:0": "minecraft:glass",
	"24:0": "minecraft:sandstone",
	"35:0": "minecraft:white_wool",
	"45:0": "minecraft:bricks",
	"48:0": "minecraft:mossy_cobblestone",
	"49:0": "minecraft:obsidian",
	"79:0": "minecraft:ice",
	"98:0": "minecraft:stone_bricks",
}

func buildProfiles() map[ProfileName]profileTable {
	ns112 := make(map[string]string, len(commonNamespaced))
	ns116 := make(map[string]string, len(commonNamespaced)+3)
	for _, id := range commonNamespaced {
		ns112[id] = id
		ns116[id] = id
	}
	for _, id := range []string{"minecraft:oak_log", "minecraft:spruce_log", "minecraft:birch_log"} {
		ns116[id] = id
	}
	leg112 := make(map[string]string, len(legacy112))
	for k, v := range legacy112 {
		leg112[k] = v
	}
	return map[ProfileName]profileTable{
		ProfileLegacy112:     {namespaced: ns112, legacy: leg112},
		ProfileNamespaced116: {namespaced: ns116, legacy: map[string]string{"0:0": "minecraft:air"}},
	}
}
