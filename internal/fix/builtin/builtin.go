// Package builtin is the manifest of fix functions available to fix
// records. Names match the reference_implementation strings already held
// in deployed fix stores. Importing the package registers every function
// on registry.Default.
package builtin

import (
	"fmt"
	"sort"

	"daops/internal/config"
	"daops/internal/dataset"
	"daops/internal/fix"
	"daops/internal/registry"
)

// Post-processor names.
const (
	EditVarAttrs           = "daops.data_utils.attr_utils.edit_var_attrs"
	EditGlobalAttrs        = "daops.data_utils.attr_utils.edit_global_attrs"
	AddGlobalAttrsIfNeeded = "daops.data_utils.attr_utils.add_global_attrs_if_needed"
	RemoveVarAttrs         = "daops.data_utils.attr_utils.remove_var_attrs"
	RemoveCoordAttr        = "daops.data_utils.attr_utils.remove_coord_attr"
	FixMetadata            = "daops.data_utils.var_utils.fix_metadata"
	SqueezeDims            = "daops.data_utils.coord_utils.squeeze_dims"
	AddScalarCoord         = "daops.data_utils.coord_utils.add_scalar_coord"
	AddCoord               = "daops.data_utils.coord_utils.add_coord"
	AddDataVar             = "daops.data_utils.var_utils.add_data_var"
	MaskData               = "daops.data_utils.array_utils.mask_data"
)

// Derive function names.
const (
	decadal = "daops.fix_utils.decadal_utils."

	GetTimeCalendar             = decadal + "get_time_calendar"
	GetLeadTimes                = decadal + "get_lead_times"
	GetStartDate                = decadal + "get_start_date"
	GetSubExperimentID          = decadal + "get_sub_experiment_id"
	GetReftime                  = decadal + "get_reftime"
	GetBndVars                  = decadal + "get_bnd_vars"
	GetDecadalBndsList          = decadal + "get_decadal_bnds_list"
	GetDecadalModelAttrFromDict = decadal + "get_decadal_model_attr_from_dict"
	FixFurtherInfoURL           = decadal + "fix_further_info_url"
)

func init() { Register(registry.Default) }

// Register adds every built-in fix to reg. Derive expressions nested inside
// attribute maps are resolved against the same registry.
func Register(reg *registry.Registry) {
	b := &builtins{reg: reg}

	reg.RegisterPost(EditVarAttrs, b.editVarAttrs)
	reg.RegisterPost(EditGlobalAttrs, b.editGlobalAttrs)
	reg.RegisterPost(AddGlobalAttrsIfNeeded, b.addGlobalAttrsIfNeeded)
	reg.RegisterPost(RemoveVarAttrs, removeVarAttrs)
	reg.RegisterPost(RemoveCoordAttr, b.removeCoordAttr)
	reg.RegisterPost(FixMetadata, fixMetadata)
	reg.RegisterPost(SqueezeDims, squeezeDims)
	reg.RegisterPost(AddScalarCoord, b.addScalarCoord)
	reg.RegisterPost(AddCoord, b.addCoord)
	reg.RegisterPost(AddDataVar, addDataVar)
	reg.RegisterPost(MaskData, maskData)

	reg.RegisterDerive(GetTimeCalendar, getTimeCalendar)
	reg.RegisterDerive(GetLeadTimes, getLeadTimes)
	reg.RegisterDerive(GetStartDate, getStartDate)
	reg.RegisterDerive(GetSubExperimentID, getSubExperimentID)
	reg.RegisterDerive(GetReftime, getReftime)
	reg.RegisterDerive(GetBndVars, getBndVars)
	reg.RegisterDerive(GetDecadalBndsList, getDecadalBndsList)
	reg.RegisterDerive(GetDecadalModelAttrFromDict, getDecadalModelAttrFromDict)
	reg.RegisterDerive(FixFurtherInfoURL, fixFurtherInfoURL)
}

type builtins struct {
	reg *registry.Registry
}

// resolved returns the named operand map with nested derive expressions
// evaluated, visiting keys in sorted order.
func (b *builtins) resolved(id string, ds *dataset.Dataset, ops config.Options, key string) (dataset.Attrs, []string, error) {
	raw := ops.Map(key)
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(dataset.Attrs, len(raw))
	for _, k := range keys {
		v, err := fix.ResolveAny(raw[k], id, ds, b.reg)
		if err != nil {
			return nil, nil, fmt.Errorf("%s.%s: %w", key, k, err)
		}
		out[k] = v
	}
	return out, keys, nil
}

func requireVar(ds *dataset.Dataset, name string) (*dataset.Variable, error) {
	if name == "" {
		return nil, fmt.Errorf("fix: operand var_id is required")
	}
	v, ok := ds.Var(name)
	if !ok {
		return nil, fmt.Errorf("fix: variable %q not in dataset", name)
	}
	return v, nil
}

// stringList accepts a JSON array of strings, a []string, or a single string.
func stringList(v any) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{x}, nil
	case []string:
		return x, nil
	case []any:
		out := make([]string, len(x))
		for i, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("fix: element %d is %T, want string", i, e)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("fix: %T is not a list of strings", v)
}
