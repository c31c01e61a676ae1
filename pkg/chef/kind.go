package chef

import (
	"net/url"
	"strings"
)

// Kind is the closed set of Chef object types this package models
type Kind int

const (
	KindClient Kind = iota + 1
	KindClientKey
	KindCookbook
	KindCookbookVersion
	KindDataBag
	KindDataBagItem
	KindEnvironment
	KindNode
	KindRole
)

const parentSlot = "{parent_name}"

// kindSpec is everything that varies per kind
type kindSpec struct {
	name string
	// collection is relative to the organization URL and may hold parentSlot
	collection string
	// index is the search index, empty when the kind cannot be searched
	index string
	// matchField is used by membership tests
	matchField string
	// idField names the object in create bodies and search rows
	idField string
	shape   shapePolicy
}

func (k Kind) spec() kindSpec {
	switch k {
	case KindClient:
		return kindSpec{name: "client", collection: "clients", index: "client", matchField: "name", idField: "name", shape: plainShape{}}
	case KindClientKey:
		return kindSpec{name: "client_key", collection: "clients/" + parentSlot + "/keys", matchField: "name", idField: "name", shape: plainShape{}}
	case KindCookbook:
		return kindSpec{name: "cookbook", collection: "cookbooks", matchField: "name", idField: "name", shape: cookbookShape{}}
	case KindCookbookVersion:
		return kindSpec{name: "cookbook_version", collection: "cookbooks/" + parentSlot, matchField: "version", idField: "version", shape: plainShape{}}
	case KindDataBag:
		return kindSpec{name: "data_bag", collection: "data", matchField: "name", idField: "name", shape: plainShape{}}
	case KindDataBagItem:
		return kindSpec{name: "data_bag_item", collection: "data/" + parentSlot, index: parentSlot, matchField: "id", idField: "id", shape: plainShape{}}
	case KindEnvironment:
		return kindSpec{name: "environment", collection: "environments", index: "environment", matchField: "name", idField: "name", shape: plainShape{}}
	case KindNode:
		return kindSpec{name: "node", collection: "nodes", index: "node", matchField: "name", idField: "name", shape: plainShape{}}
	case KindRole:
		return kindSpec{name: "role", collection: "roles", index: "role", matchField: "name", idField: "name", shape: plainShape{}}
	default:
		return kindSpec{name: "unknown", idField: "name", shape: plainShape{}}
	}
}

func (k Kind) String() string {
	return k.spec().name
}

// ParseKind maps a user supplied name (singular or plural) to a Kind
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "client", "clients":
		return KindClient, true
	case "cookbook", "cookbooks":
		return KindCookbook, true
	case "databag", "databags", "data_bag", "data_bags", "data":
		return KindDataBag, true
	case "environment", "environments", "env":
		return KindEnvironment, true
	case "node", "nodes":
		return KindNode, true
	case "role", "roles":
		return KindRole, true
	default:
		return 0, false
	}
}

// collectionURL expands the kind's template below orgURL
func (k Kind) collectionURL(orgURL, parent string) string {
	path := strings.ReplaceAll(k.spec().collection, parentSlot, url.PathEscape(parent))
	return strings.TrimSuffix(orgURL, "/") + "/" + path
}

// entityURL is the canonical URL of one object
func (k Kind) entityURL(orgURL, parent, name string) string {
	return k.collectionURL(orgURL, parent) + "/" + url.PathEscape(name)
}

// searchIndex is the index to query, or "" when the kind has none
func (k Kind) searchIndex(parent string) string {
	return strings.ReplaceAll(k.spec().index, parentSlot, parent)
}
