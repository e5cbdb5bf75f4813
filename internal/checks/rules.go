package checks

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/auditor-cli/internal/tags"
)

// Rules holds the organization-wide word lists and notes used by the checks.
type Rules struct {
	UppercaseWords []string `yaml:"uppercase_words"`
	Articles       []string `yaml:"articles"`
	DeleteTags     []string `yaml:"delete_tags"`
	StaticNote     string   `yaml:"static_note"`
	ShelvedNote    string   `yaml:"shelved_note"`
}

// Notes for static and shelved descriptions.
const (
	DefaultStaticNote = "<i><b>NOTE</b>: This dataset holds 'static' data that we don't expect to change. " +
		"We have removed it from the SDE database and placed it in ArcGIS Online, but it is still considered " +
		"part of the SGID and shared on opendata.gis.utah.gov.</i>"

	DefaultShelvedNote = "<i><b>NOTE</b>: This dataset is an older dataset that we have removed from the SGID " +
		"and 'shelved' in ArcGIS Online. There may (or may not) be a newer vintage of this dataset in the SGID.</i>"
)

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		UppercaseWords: []string{
			"2g", "3g", "4g", "agol", "aog", "at&t", "atv", "blm", "brat", "caf", "cdl", "dabc", "daq", "dem",
			"dfcm", "dfirm", "dnr", "dogm", "dot", "dsl", "dsm", "dtm", "dup", "dwq", "e911", "ems", "epa", "fae",
			"fcc", "fema", "gcdb", "gis", "gnis", "hava", "huc", "lir", "lrs", "lte", "luca", "mrrc", "nca",
			"ng911", "ngda", "nox", "npsbn", "ntia", "nwi", "osa", "pli", "plss", "pm10", "ppm", "psap", "sao",
			"sbdc", "sbi", "sgid", "shpo", "sitla", "sligp", "trax", "uca", "udot", "ugrc", "ugs", "uhp", "uic",
			"uipa", "us", "usao", "usdw", "usfs", "usfws", "usps", "ustc", "ut", "uta", "utsc", "vcp", "vista",
			"voc", "wbd", "wre",
		},
		Articles: []string{"a", "an", "the", "of", "is", "in"},
		DeleteTags: []string{
			".sd",
			"service definition",
			"required: common-use word or phrase used to describe the subject of the data set",
			"002",
			"required: common-use word or phrase used to describe the subject of the data set.",
			"agrc",
		},
		StaticNote:  DefaultStaticNote,
		ShelvedNote: DefaultShelvedNote,
	}
}

// LoadRules reads rule overrides from a YAML file. Lists and notes present in
// the file replace the defaults; absent ones keep them.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, eris.Wrapf(err, "checks: read rules %s", path)
	}

	var override Rules
	if err := yaml.Unmarshal(data, &override); err != nil {
		return rules, eris.Wrap(err, "checks: parse rules")
	}

	if override.UppercaseWords != nil {
		rules.UppercaseWords = override.UppercaseWords
	}
	if override.Articles != nil {
		rules.Articles = override.Articles
	}
	if override.DeleteTags != nil {
		rules.DeleteTags = override.DeleteTags
	}
	if override.StaticNote != "" {
		rules.StaticNote = override.StaticNote
	}
	if override.ShelvedNote != "" {
		rules.ShelvedNote = override.ShelvedNote
	}
	return rules, nil
}

// compiled is the lookup form of Rules.
type compiled struct {
	upper    tags.WordSet
	articles tags.WordSet
	deny     tags.WordSet
}

func (r Rules) compile() compiled {
	return compiled{
		upper:    tags.NewWordSet(r.UppercaseWords...),
		articles: tags.NewWordSet(r.Articles...),
		deny:     tags.NewWordSet(r.DeleteTags...),
	}
}
