package loader

import "strings"

// element is the per-element data the loader needs to build atoms.
type element struct {
	covalentRadius float32
	color          [4]float32
}

// defaultElement is used for symbols missing from the table.
var defaultElement = element{covalentRadius: 1.5, color: [4]float32{1, 0.08, 0.58, 1}}

func rgb(r, g, b uint8) [4]float32 {
	return [4]float32{float32(r) / 255, float32(g) / 255, float32(b) / 255, 1}
}

// elements holds covalent radii in Å and Jmol colors.
var elements = map[string]element{
	"H":  {0.32, rgb(255, 255, 255)},
	"He": {0.28, rgb(217, 255, 255)},
	"Li": {1.28, rgb(204, 128, 255)},
	"Be": {0.96, rgb(194, 255, 0)},
	"B":  {0.84, rgb(255, 181, 181)},
	"C":  {0.77, rgb(144, 144, 144)},
	"N":  {0.71, rgb(48, 80, 248)},
	"O":  {0.66, rgb(255, 13, 13)},
	"F":  {0.64, rgb(144, 224, 80)},
	"Ne": {0.58, rgb(179, 227, 245)},
	"Na": {1.66, rgb(171, 92, 242)},
	"Mg": {1.41, rgb(138, 255, 0)},
	"Al": {1.21, rgb(191, 166, 166)},
	"Si": {1.11, rgb(240, 200, 160)},
	"P":  {1.07, rgb(255, 128, 0)},
	"S":  {1.05, rgb(255, 255, 48)},
	"Cl": {1.02, rgb(31, 240, 31)},
	"Ar": {1.06, rgb(128, 209, 227)},
	"K":  {2.03, rgb(143, 64, 212)},
	"Ca": {1.76, rgb(61, 255, 0)},
	"Sc": {1.70, rgb(230, 230, 230)},
	"Ti": {1.60, rgb(191, 194, 199)},
	"V":  {1.53, rgb(166, 166, 171)},
	"Cr": {1.39, rgb(138, 153, 199)},
	"Mn": {1.39, rgb(156, 122, 199)},
	"Fe": {1.32, rgb(224, 102, 51)},
	"Co": {1.26, rgb(240, 144, 160)},
	"Ni": {1.24, rgb(80, 208, 80)},
	"Cu": {1.32, rgb(200, 128, 51)},
	"Zn": {1.22, rgb(125, 128, 176)},
	"Ga": {1.22, rgb(194, 143, 143)},
	"Ge": {1.22, rgb(102, 143, 143)},
	"As": {1.19, rgb(189, 128, 227)},
	"Se": {1.20, rgb(255, 161, 0)},
	"Br": {1.20, rgb(166, 41, 41)},
	"Kr": {1.16, rgb(92, 184, 209)},
	"Rb": {2.20, rgb(112, 46, 176)},
	"Sr": {1.95, rgb(0, 255, 0)},
	"Y":  {1.90, rgb(148, 255, 255)},
	"Zr": {1.75, rgb(148, 224, 224)},
	"Nb": {1.64, rgb(115, 194, 201)},
	"Mo": {1.54, rgb(84, 181, 181)},
	"Tc": {1.47, rgb(59, 158, 158)},
	"Ru": {1.46, rgb(36, 143, 143)},
	"Rh": {1.42, rgb(10, 125, 140)},
	"Pd": {1.39, rgb(0, 105, 133)},
	"Ag": {1.45, rgb(192, 192, 192)},
	"Cd": {1.44, rgb(255, 217, 143)},
	"In": {1.42, rgb(166, 117, 115)},
	"Sn": {1.39, rgb(102, 128, 128)},
	"Sb": {1.39, rgb(158, 99, 181)},
	"Te": {1.38, rgb(212, 122, 0)},
	"I":  {1.39, rgb(148, 0, 148)},
	"Xe": {1.40, rgb(66, 158, 176)},
	"Cs": {2.44, rgb(87, 23, 143)},
	"Ba": {2.15, rgb(0, 201, 0)},
	"Pt": {1.36, rgb(208, 208, 224)},
	"Au": {1.36, rgb(255, 209, 35)},
	"Hg": {1.32, rgb(184, 184, 208)},
	"Pb": {1.46, rgb(87, 89, 97)},
	"U":  {1.96, rgb(0, 143, 255)},
}

// resolveSymbol turns "CL", "cl" or "Cl1" into "Cl". A two-letter prefix that is not an element
// falls back to its first letter, so the label "Cx2" reads as carbon.
func resolveSymbol(s string) string {
	end := 0
	for end < len(s) && end < 2 && isLetter(s[end]) {
		end++
	}
	if end == 0 {
		return s
	}
	two := strings.ToUpper(s[:1]) + strings.ToLower(s[1:end])
	if _, ok := elements[two]; ok || end == 1 {
		return two
	}
	if one := strings.ToUpper(s[:1]); elements[one] != (element{}) {
		return one
	}
	return two
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// lookupElement returns the table entry for a symbol, falling back to defaultElement.
func lookupElement(symbol string) (element, bool) {
	e, ok := elements[symbol]
	if !ok {
		return defaultElement, false
	}
	return e, true
}
