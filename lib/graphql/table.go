// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package graphql

import (
	"errors"
	"fmt"

	"github.com/agentcloud/agentsync/lib/entity"
)

// ErrUnsupportedOperation is returned for a (kind, operation) pair
// that has no root field.
var ErrUnsupportedOperation = errors.New("graphql: unsupported operation")

// BodyShape describes how items are rendered into the root argument.
type BodyShape int

const (
	// Objects renders each item as a wire object.
	Objects BodyShape = iota
	// IDs renders each item as its resolved id string.
	IDs
	// RemoveObjects renders each item as {oid, owner, reason}.
	RemoveObjects
	// QueryParams renders the first item as a single object.
	QueryParams
)

func (s BodyShape) String() string {
	switch s {
	case Objects:
		return "objects"
	case IDs:
		return "ids"
	case RemoveObjects:
		return "remove_objects"
	case QueryParams:
		return "query_params"
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// Root is one entry of the root-field table.
type Root struct {
	Field string
	Query bool
	Arg   string
	Shape BodyShape
	// Structured roots return a list of {id, success, error}.
	Structured bool
}

// Table maps (kind, operation) to a Root.
type Table map[entity.Kind]map[entity.Operation]Root

// Lookup returns the Root for (kind, op).
func (t Table) Lookup(kind entity.Kind, op entity.Operation) (Root, error) {
	if root, ok := t[kind][op]; ok {
		return root, nil
	}
	return Root{}, fmt.Errorf("%w: %s %s", ErrUnsupportedOperation, op, kind)
}

// Set adds or replaces an entry.
func (t Table) Set(kind entity.Kind, op entity.Operation, root Root) {
	if t[kind] == nil {
		t[kind] = make(map[entity.Operation]Root)
	}
	t[kind][op] = root
}

// entityRoots is the plural suffix of each entity's root fields.
var entityRoots = map[entity.Kind]string{
	entity.KindAgent:          "Agents",
	entity.KindSkill:          "AgentSkills",
	entity.KindTask:           "AgentTasks",
	entity.KindTool:           "AgentTools",
	entity.KindKnowledge:      "Knowledges",
	entity.KindOrganization:   "Organizations",
	entity.KindAvatarResource: "AvatarResources",
	entity.KindVehicle:        "Vehicles",
}

var relationshipRoots = map[entity.Kind]string{
	entity.KindAgentSkill:     "AgentSkillRelations",
	entity.KindAgentTask:      "AgentTaskRelations",
	entity.KindAgentTool:      "AgentToolRelations",
	entity.KindSkillTool:      "SkillToolRelations",
	entity.KindSkillKnowledge: "SkillKnowledgeRelations",
	entity.KindTaskSkill:      "TaskSkillRelations",
}

// DefaultTable returns the root table of the catalog service.
// Entities support all four operations and delete by id array.
// Relationships cannot be updated, delete with removal objects, and
// return structured mutation results.
func DefaultTable() Table {
	t := make(Table)
	for kind, suffix := range entityRoots {
		t.Set(kind, entity.OpAdd, Root{Field: "add" + suffix, Arg: "input", Shape: Objects})
		t.Set(kind, entity.OpUpdate, Root{Field: "update" + suffix, Arg: "input", Shape: Objects})
		t.Set(kind, entity.OpDelete, Root{Field: "remove" + suffix, Arg: "input", Shape: IDs})
		t.Set(kind, entity.OpQuery, Root{Field: "query" + suffix, Query: true, Arg: "qp", Shape: QueryParams})
	}
	for kind, suffix := range relationshipRoots {
		t.Set(kind, entity.OpAdd, Root{Field: "add" + suffix, Arg: "input", Shape: Objects, Structured: true})
		t.Set(kind, entity.OpDelete, Root{Field: "remove" + suffix, Arg: "input", Shape: RemoveObjects, Structured: true})
		t.Set(kind, entity.OpQuery, Root{Field: "query" + suffix, Query: true, Arg: "qp", Shape: QueryParams})
	}
	return t
}

// fileRoots are the create-with-files variants.
var fileRoots = map[entity.Kind]Root{
	entity.KindKnowledge:      {Field: "addKnowledgesWithFiles", Arg: "input", Shape: Objects},
	entity.KindAvatarResource: {Field: "addAvatarResourcesWithFiles", Arg: "input", Shape: Objects},
}

// FileRoot returns the create-with-files root of kind, if it has one.
func FileRoot(kind entity.Kind) (Root, bool) {
	root, ok := fileRoots[kind]
	return root, ok
}
