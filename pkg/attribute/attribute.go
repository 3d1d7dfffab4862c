// Package attribute defines the OPC-UA node attribute identifiers.
package attribute

import (
	"fmt"
	"strconv"
)

// ID identifies a node attribute. Valid identifiers are positive.
type ID uint32

// Attribute identifiers (OPC-UA Part 6, AttributeIds).
const (
	Invalid                 ID = 0
	NodeID                  ID = 1
	NodeClass               ID = 2
	BrowseName              ID = 3
	DisplayName             ID = 4
	Description             ID = 5
	WriteMask               ID = 6
	UserWriteMask           ID = 7
	IsAbstract              ID = 8
	Symmetric               ID = 9
	InverseName             ID = 10
	ContainsNoLoops         ID = 11
	EventNotifier           ID = 12
	Value                   ID = 13
	DataType                ID = 14
	ValueRank               ID = 15
	ArrayDimensions         ID = 16
	AccessLevel             ID = 17
	UserAccessLevel         ID = 18
	MinimumSamplingInterval ID = 19
	Historizing             ID = 20
	Executable              ID = 21
	UserExecutable          ID = 22
	DataTypeDefinition      ID = 23
	RolePermissions         ID = 24
	UserRolePermissions     ID = 25
	AccessRestrictions      ID = 26
	AccessLevelEx           ID = 27
)

var names = []string{
	"Invalid", "NodeId", "NodeClass", "BrowseName", "DisplayName", "Description",
	"WriteMask", "UserWriteMask", "IsAbstract", "Symmetric", "InverseName",
	"ContainsNoLoops", "EventNotifier", "Value", "DataType", "ValueRank",
	"ArrayDimensions", "AccessLevel", "UserAccessLevel", "MinimumSamplingInterval",
	"Historizing", "Executable", "UserExecutable", "DataTypeDefinition",
	"RolePermissions", "UserRolePermissions", "AccessRestrictions", "AccessLevelEx",
}

// String returns the attribute name.
func (id ID) String() string {
	if int(id) < len(names) {
		return names[id]
	}
	return "Attribute(" + strconv.FormatUint(uint64(id), 10) + ")"
}

// IsValid returns true for the identifiers defined above, excluding Invalid.
func (id ID) IsValid() bool {
	return id > Invalid && id <= AccessLevelEx
}

// Parse accepts an attribute name ("Value") or a decimal identifier ("13").
func Parse(s string) (ID, error) {
	for i, name := range names[1:] {
		if name == s {
			return ID(i + 1), nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return Invalid, fmt.Errorf("invalid attribute: %q", s)
	}
	return ID(n), nil
}
