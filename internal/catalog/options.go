package catalog

// Option is a selectable filter value with its display label.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Options lists the selectable values for each filter field.
type Options struct {
	Sets     []Option `json:"sets"`
	Rarities []Option `json:"rarities"`
	Types    []Option `json:"types"`
}

var setOptions = []Option{
	{Value: "A1", Label: "Genetic Apex"},
	{Value: "A1a", Label: "Mythical Island"},
	{Value: "A2", Label: "Space-Time Smackdown"},
	{Value: "A2a", Label: "Triumphant Light"},
}

var rarityOptions = []Option{
	{Value: "◊", Label: "◊"},
	{Value: "◊◊", Label: "◊◊"},
	{Value: "◊◊◊", Label: "◊◊◊"},
	{Value: "◊◊◊◊", Label: "◊◊◊◊"},
	{Value: "☆", Label: "☆"},
	{Value: "☆☆", Label: "☆☆"},
	{Value: "☆☆☆", Label: "☆☆☆"},
	{Value: "👑", Label: "👑"},
	{Value: "Promo", Label: "Promo"},
}

// Energy codes are single letters; trainer categories use their full name.
var typeOptions = []Option{
	{Value: "G", Label: "Grass"},
	{Value: "R", Label: "Fire"},
	{Value: "W", Label: "Water"},
	{Value: "L", Label: "Electric"},
	{Value: "P", Label: "Psychic"},
	{Value: "F", Label: "Fighting"},
	{Value: "D", Label: "Darkness"},
	{Value: "M", Label: "Metal"},
	{Value: "N", Label: "Dragon"},
	{Value: "C", Label: "Colorless"},
	{Value: "Item", Label: "Item"},
	{Value: "Tool", Label: "Tool"},
	{Value: "Supporter", Label: "Supporter"},
}

// FilterOptions returns copies of the filter option lists.
func FilterOptions() Options {
	return Options{
		Sets:     cloneOptions(setOptions),
		Rarities: cloneOptions(rarityOptions),
		Types:    cloneOptions(typeOptions),
	}
}

// SetLabel returns the display name of a set code, or the code itself when unknown.
func SetLabel(code string) string {
	for _, opt := range setOptions {
		if opt.Value == code {
			return opt.Label
		}
	}
	return code
}

func cloneOptions(src []Option) []Option {
	out := make([]Option, len(src))
	copy(out, src)
	return out
}
