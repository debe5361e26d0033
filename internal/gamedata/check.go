package gamedata

import (
	"fmt"
	"slices"

	"golang.org/x/text/unicode/norm"
)

// Report is the outcome of [Check]. Errors make the data unusable for
// generation; warnings point at likely authoring mistakes.
type Report struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the check found no errors.
func (r Report) OK() bool { return len(r.Errors) == 0 }

// Check cross-references the loaded documents. It catches region exits and
// claims that point nowhere, locations claimed by more than one region,
// reused bit indices, default items and goal locations that do not exist.
// Locations nobody claims, and names that only differ by Unicode
// normalisation, are warnings.
func Check(d *Data) Report {
	var r Report
	errorf := func(format string, args ...any) { r.Errors = append(r.Errors, fmt.Sprintf(format, args...)) }
	warnf := func(format string, args ...any) { r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...)) }

	if d.Start != "" {
		if _, ok := d.Region(d.Start); !ok {
			errorf("start region [%s] was not defined", d.Start)
		}
	}

	claimedBy := make(map[string]string)
	for _, region := range d.Regions {
		for _, exit := range region.Exits {
			if _, ok := d.Region(exit); !ok {
				errorf("region [%s] referenced by [%s] was not defined", exit, region.Key)
			}
		}
		for _, loc := range region.Locations {
			if _, ok := d.Location(loc); !ok {
				errorf("region [%s] references unknown location key [%s]", region.Key, loc)
				continue
			}
			if other, ok := claimedBy[loc]; ok {
				errorf("location [%s] was claimed by multiple regions (%s, %s)", loc, other, region.Key)
				continue
			}
			claimedBy[loc] = region.Key
		}
	}

	bits := make(map[int]string)
	for _, loc := range d.Locations {
		if _, ok := claimedBy[loc.Key]; !ok {
			warnf("location [%s] was not claimed by any region", loc.Key)
		}
		if loc.DefaultItem != "" {
			if _, ok := d.Item(loc.DefaultItem); !ok {
				errorf("location [%s] default_item [%s] is not a known item key", loc.Key, loc.DefaultItem)
			}
		}
		if loc.BitIndex != nil {
			if other, ok := bits[*loc.BitIndex]; ok {
				errorf("bit_index %d is assigned to multiple locations (%s, %s)", *loc.BitIndex, other, loc.Key)
			} else {
				bits[*loc.BitIndex] = loc.Key
			}
		}
	}

	for _, g := range d.Goals {
		if _, ok := d.Location(g.Location); !ok {
			errorf("goal [%s] references unknown location key [%s]", g.Key, g.Location)
		}
	}

	checkLookalikes(ItemsFile, namesOf(d.Items, func(r ItemRow) string { return r.Name }), warnf)
	checkLookalikes(LocationsFile, namesOf(d.Locations, func(r LocationRow) string { return r.Name }), warnf)

	slices.Sort(r.Errors)
	slices.Sort(r.Warnings)
	return r
}

// checkLookalikes warns about names that are distinct byte strings but
// render identically once NFC-normalised; the name→id map would accept
// both while players could not tell them apart.
func checkLookalikes(file string, names []string, warnf func(string, ...any)) {
	seen := make(map[string]string, len(names))
	for _, name := range names {
		n := norm.NFC.String(name)
		if other, ok := seen[n]; ok && other != name {
			warnf("%s: names %q and %q differ only by unicode normalisation", file, other, name)
			continue
		}
		seen[n] = name
	}
}

func namesOf[T any](rows []T, name func(T) string) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = name(r)
	}
	return out
}
