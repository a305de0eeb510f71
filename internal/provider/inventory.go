package provider

import (
	"fmt"
	"sort"
	"strings"
)

// inventory maps a bus object path to its flattened properties.
type inventory map[string]map[string]any

// systemStates translates OpenBMC system manager states to Redfish power states.
var systemStates = map[string]string{
	"BASE_APPS":        StateOff,
	"BMC_STARTING":     StateOff,
	"BMC_READY":        StateOff,
	"HOST_POWERING_ON": StatePoweringOn,
	"HOST_POWERED_ON":  StatePoweringOn,
	"HOST_BOOTING":     StatePoweringOn,
	"HOST_BOOTED":      StateOn,
	"HOST_POWERED_OFF": StateOff,
}

func (inv inventory) byFRUType(fru string) inventory {
	out := inventory{}
	for path, props := range inv {
		if str(props["fru_type"]) == fru {
			out[path] = props
		}
	}
	return out
}

// sortedPaths keeps item order stable across calls.
func (inv inventory) sortedPaths() []string {
	paths := make([]string, 0, len(inv))
	for p := range inv {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func chassisFromInventory(inv inventory) map[string]any {
	info := map[string]any{}
	for _, path := range inv.byFRUType("MEMORY_BUFFER").sortedPaths() {
		for key, value := range inv[path] {
			v := strings.TrimSpace(str(value))
			switch key {
			case "Custom Field 1":
				info["UUID"] = uuidField(v)
			case "Manufacturer":
				info["Manufacturer"] = v
			case "Name":
				info["Model"] = v
			case "Part Number":
				info["PartNumber"] = v
			case "Serial Number":
				info["SerialNumber"] = v
			}
		}
	}
	return info
}

func processorsFromInventory(inv inventory) []Item {
	cpus := inv.byFRUType("CPU")
	cores := inv.byFRUType("CORE")
	var items []Item
	for _, path := range cpus.sortedPaths() {
		id := instanceID(path)
		props := map[string]any{"TotalCores": coreCount(cores, id)}
		for key, value := range cpus[path] {
			v := str(value)
			switch key {
			case "Manufacturer":
				props["Manufacturer"] = v
			case "fru_type":
				props["ProcessorType"] = v
			case "Serial Number":
				props["SerialNumber"] = v
			case "Part Number":
				props["PartNumber"] = v
			case "Custom Field 2":
				props["UUID"] = uuidField(v)
			case "Name":
				props["Name"] = v
			case "present":
				if v == "True" || v == "true" {
					props["Status"] = enabledStatus()
				}
			}
		}
		items = append(items, Item{ID: id, Properties: props})
	}
	return items
}

func memoryFromInventory(inv inventory) []Item {
	dimms := inv.byFRUType("DIMM")
	var items []Item
	for _, path := range dimms.sortedPaths() {
		props := map[string]any{}
		for key, value := range dimms[path] {
			v := str(value)
			switch key {
			case "Manufacturer":
				props["Manufacturer"] = v
			case "fru_type":
				props["MemoryType"] = "DRAM"
			case "Serial Number":
				props["SerialNumber"] = v
			case "Part Number":
				props["PartNumber"] = v
			case "Name":
				props["Name"] = v
			case "present":
				if v == "True" || v == "true" {
					props["Status"] = enabledStatus()
				}
			}
		}
		items = append(items, Item{ID: instanceID(path), Properties: props})
	}
	return items
}

func biosFromInventory(inv inventory) string {
	for _, path := range inv.byFRUType("SYSTEM").sortedPaths() {
		if strings.ToUpper(lastSegment(path)) != "SYSTEM" {
			continue
		}
		if v, ok := inv[path]["Version"]; ok {
			return str(v)
		}
	}
	return ""
}

// coreCount counts present cores whose parent object is the given CPU.
func coreCount(cores inventory, cpuID string) int {
	n := 0
	for path, props := range cores {
		parts := strings.Split(path, "/")
		if len(parts) < 2 || strings.ToUpper(parts[len(parts)-2]) != cpuID {
			continue
		}
		if p := str(props["present"]); p == "True" || p == "true" {
			n++
		}
	}
	return n
}

func instanceID(path string) string {
	return strings.ToUpper(lastSegment(path))
}

func lastSegment(path string) string {
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}

// uuidField strips an "UUID:" style prefix from FRU custom fields.
func uuidField(v string) string {
	if i := strings.LastIndex(v, ":"); i >= 0 {
		return v[i+1:]
	}
	return v
}

func enabledStatus() map[string]any {
	return map[string]any{"State": "Enabled", "Health": "OK"}
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
