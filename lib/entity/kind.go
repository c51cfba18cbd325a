// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies an entity or relationship category.
type Kind string

const (
	KindAgent          Kind = "agent"
	KindSkill          Kind = "skill"
	KindTask           Kind = "task"
	KindTool           Kind = "tool"
	KindKnowledge      Kind = "knowledge"
	KindOrganization   Kind = "organization"
	KindAvatarResource Kind = "avatar_resource"
	KindVehicle        Kind = "vehicle"

	KindAgentSkill     Kind = "agent_skill"
	KindAgentTask      Kind = "agent_task"
	KindAgentTool      Kind = "agent_tool"
	KindSkillTool      Kind = "skill_tool"
	KindSkillKnowledge Kind = "skill_knowledge"
	KindTaskSkill      Kind = "task_skill"
)

type kindInfo struct {
	relationship bool
	// legacyIDs are the historical id field names, tried after "id"
	// and "oid".
	legacyIDs []string
}

var kinds = map[Kind]kindInfo{
	KindAgent:          {legacyIDs: []string{"agid", "agent_id"}},
	KindSkill:          {legacyIDs: []string{"skid", "skill_id"}},
	KindTask:           {legacyIDs: []string{"taskid", "task_id"}},
	KindTool:           {legacyIDs: []string{"toolid", "tool_id"}},
	KindKnowledge:      {legacyIDs: []string{"knid", "knowledge_id"}},
	KindOrganization:   {legacyIDs: []string{"orgid", "org_id"}},
	KindAvatarResource: {legacyIDs: []string{"resid", "resource_id"}},
	KindVehicle:        {legacyIDs: []string{"vid", "vehicle_id"}},

	KindAgentSkill:     {relationship: true, legacyIDs: []string{"relid", "agent_skill_id"}},
	KindAgentTask:      {relationship: true, legacyIDs: []string{"relid", "agent_task_id"}},
	KindAgentTool:      {relationship: true, legacyIDs: []string{"relid", "agent_tool_id"}},
	KindSkillTool:      {relationship: true, legacyIDs: []string{"relid", "skill_tool_id"}},
	KindSkillKnowledge: {relationship: true, legacyIDs: []string{"relid", "skill_knowledge_id"}},
	KindTaskSkill:      {relationship: true, legacyIDs: []string{"relid", "task_skill_id"}},
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// IsRelationship reports whether k links two entities.
func (k Kind) IsRelationship() bool {
	return kinds[k].relationship
}

// LegacyIDFields returns the kind-specific id field names in lookup
// order.
func (k Kind) LegacyIDFields() []string {
	return kinds[k].legacyIDs
}

func (k Kind) String() string { return string(k) }

// ParseKind accepts a kind name, tolerating case, dashes, and the
// "agent-skill" / "agent↔skill" spellings of relationships.
func ParseKind(s string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "_", "↔", "_", " ", "_").Replace(normalized)
	k := Kind(normalized)
	if !k.Valid() {
		return "", fmt.Errorf("entity: unknown kind %q", s)
	}
	return k, nil
}

// AllKinds returns every kind, entities first, each group sorted.
func AllKinds() []Kind {
	var entities, relationships []Kind
	for k, info := range kinds {
		if info.relationship {
			relationships = append(relationships, k)
		} else {
			entities = append(entities, k)
		}
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i] < entities[j] })
	sort.Slice(relationships, func(i, j int) bool { return relationships[i] < relationships[j] })
	return append(entities, relationships...)
}

// Operation is a remote write or read.
type Operation string

const (
	OpAdd    Operation = "add"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpQuery  Operation = "query"
)

// ParseOperation accepts "add", "update", "delete", or "query". The
// aliases "create" and "remove" map to add and delete.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add", "create":
		return OpAdd, nil
	case "update":
		return OpUpdate, nil
	case "delete", "remove":
		return OpDelete, nil
	case "query":
		return OpQuery, nil
	}
	return "", fmt.Errorf("entity: unknown operation %q", s)
}

// IsWrite reports whether op mutates remote state.
func (op Operation) IsWrite() bool {
	return op == OpAdd || op == OpUpdate || op == OpDelete
}
