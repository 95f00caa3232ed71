package builtin

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"daops/internal/dataset"
	"daops/internal/timeparam"
)

// modelGlobalAttrs holds per-model descriptions for decadal hindcasts.
var modelGlobalAttrs = map[string]map[string]string{
	"CMCC-CM2-SR5": {
		"forcing_description":        "f1, CMIP6 historical forcings",
		"physics_description":        "physics from the standard model configuration, with no additional tuning or different parametrization",
		"initialization_description": "hindcast initialized based on observations and using historical forcing",
	},
	"EC-Earth3": {
		"forcing_description":        "f1, CMIP6 historical forcings",
		"physics_description":        "physics from the standard model configuration, with no additional tuning or different parametrization",
		"initialization_description": "Atmosphere initialization based on full-fields from ERA-Interim (s1979-s2018) or ERA-40 (s1960-s1978); ocean/sea-ice initialization based on full-fields from NEMO/LIM assimilation run nudged towards ORA-S4 (s1960-s2018)",
	},
	"HadGEM3-GC31-MM": {
		"forcing_description":        "f2, CMIP6 v6.2.0 forcings; no ozone remapping",
		"physics_description":        "physics from the standard model configuration, with no additional tuning or different parametrization",
		"initialization_description": "hindcast initialized based on observations and using historical forcing",
	},
	"MPI-ESM1-2-HR": {
		"forcing_description":        "f1, CMIP6 historical forcings",
		"physics_description":        "physics from the standard model configuration, with no additional tuning or different parametrization",
		"initialization_description": "hindcast initialized based on observations and using historical forcing",
	},
}

func idToken(id string, i int) (string, error) {
	toks := strings.Split(id, ".")
	if len(toks) <= i {
		return "", fmt.Errorf("fix: dataset id %q has no token %d", id, i)
	}
	return toks[i], nil
}

// startDate is 1 November of the year in the member token, e.g.
// "s1960-r1i1p1f1" starts 1960-11-01.
func startDate(id string) (timeparam.Time, error) {
	tok, err := idToken(id, 5)
	if err != nil {
		return timeparam.Time{}, err
	}
	year, err := strconv.Atoi(strings.TrimPrefix(strings.SplitN(tok, "-", 2)[0], "s"))
	if err != nil {
		return timeparam.Time{}, fmt.Errorf("fix: no start year in %q", tok)
	}
	return timeparam.Time{Year: year, Month: 11, Day: 1}, nil
}

func getStartDate(id string, _ *dataset.Dataset, _ ...string) (any, error) {
	sd, err := startDate(id)
	if err != nil {
		return nil, err
	}
	return sd.String(), nil
}

func subExperimentID(id string) (string, error) {
	sd, err := startDate(id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("s%d%d", sd.Year, sd.Month), nil
}

func getSubExperimentID(id string, _ *dataset.Dataset, _ ...string) (any, error) {
	return subExperimentID(id)
}

func getTimeCalendar(_ string, ds *dataset.Dataset, _ ...string) (any, error) {
	cal, err := ds.Calendar()
	if err != nil {
		return nil, err
	}
	return string(cal), nil
}

// getLeadTimes returns whole days from the start date to each time step.
func getLeadTimes(id string, ds *dataset.Dataset, _ ...string) (any, error) {
	sd, err := startDate(id)
	if err != nil {
		return nil, err
	}
	cal, err := ds.Calendar()
	if err != nil {
		return nil, err
	}
	times, err := ds.TimeAxis()
	if err != nil {
		return nil, err
	}
	out := make([]any, len(times))
	for i, t := range times {
		out[i] = cal.DaysBetween(sd, t)
	}
	return out, nil
}

var startdateAttr = regexp.MustCompile(`^s(\d{4})(\d{2})$`)

// getReftime prefers the sYYYYMM startdate attribute, keeping the default
// day and clock, and falls back to the start date from the id.
func getReftime(id string, ds *dataset.Dataset, _ ...string) (any, error) {
	def, err := startDate(id)
	if err != nil {
		return nil, err
	}
	s, _ := ds.Attrs["startdate"].(string)
	m := startdateAttr.FindStringSubmatch(s)
	if m == nil {
		return def.String(), nil
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	t := def
	t.Year, t.Month = year, month
	if !timeparam.Standard.Valid(t) {
		return def.String(), nil
	}
	return t.String(), nil
}

// boundsOf finds the bounds variable of the coordinate named, or whose
// standard_name is, key.
func boundsOf(ds *dataset.Dataset, key string) (string, error) {
	for _, name := range ds.VarNames() {
		v, _ := ds.Var(name)
		sn, _ := v.Attrs["standard_name"].(string)
		if name != key && sn != key {
			continue
		}
		if b, ok := v.Attrs["bounds"].(string); ok && b != "" {
			return b, nil
		}
	}
	return "", fmt.Errorf("fix: no bounds variable for %q", key)
}

func getBndVars(_ string, ds *dataset.Dataset, _ ...string) (any, error) {
	out := make([]string, 0, 3)
	for _, key := range []string{"latitude", "longitude", "time"} {
		b, err := boundsOf(ds, key)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func getDecadalBndsList(id string, ds *dataset.Dataset, args ...string) (any, error) {
	v, err := getBndVars(id, ds, args...)
	if err != nil {
		return nil, err
	}
	return append(v.([]string), "realization"), nil
}

func getDecadalModelAttrFromDict(id string, _ *dataset.Dataset, args ...string) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("fix: model attribute name required")
	}
	model, err := idToken(id, 3)
	if err != nil {
		return nil, err
	}
	attrs, ok := modelGlobalAttrs[model]
	if !ok {
		return nil, fmt.Errorf("fix: no decadal attributes for model %q", model)
	}
	v, ok := attrs[args[0]]
	if !ok {
		return nil, fmt.Errorf("fix: no decadal attribute %q for model %q", args[0], model)
	}
	return v, nil
}

// fixFurtherInfoURL replaces a "none" placeholder with the start year token.
func fixFurtherInfoURL(id string, ds *dataset.Dataset, _ ...string) (any, error) {
	u, _ := ds.Attrs["further_info_url"].(string)
	if !strings.Contains(u, "none") {
		return u, nil
	}
	se, err := subExperimentID(id)
	if err != nil {
		return nil, err
	}
	return strings.ReplaceAll(u, "none", se[:len(se)-2]), nil
}
