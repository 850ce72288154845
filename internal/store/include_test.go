package store

import (
	"context"
	"testing"

	"github.com/keeldb/keel/internal/jsonval"
)

const crmSchema = `{
	"Contact": {
		"name": {"type": "string"},
		"company": {"type": "string", "relation": {"type": "forward", "target": "Company"}},
		"peers": {"type": "list", "relation": {"type": "forward", "target": "Contact", "many": true}}
	},
	"Company": {
		"name": {"type": "string"},
		"contacts": {"relation": {"type": "inverse", "target": "Contact"}}
	}
}`

func newCRMStore(t *testing.T) *Store {
	t.Helper()
	s := newTestStore(t)
	if err := s.SetSchema(context.Background(), mustParseSchema(t, crmSchema)); err != nil {
		t.Fatalf("set schema: %v", err)
	}
	return s
}

func TestForwardIncludeReplacesID(t *testing.T) {
	s := newCRMStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, "Company", obj("id", "co1", "name", "Initech"), Actor{}); err != nil {
		t.Fatalf("create company: %v", err)
	}
	if _, err := s.Create(ctx, "Contact", obj("id", "c1", "name", "Ada", "company", "co1"), Actor{}); err != nil {
		t.Fatalf("create contact: %v", err)
	}

	doc, err := s.Get(ctx, "Contact", "c1", GetOptions{Include: []string{"company"}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	v, _ := doc.Fields.Get("company")
	co, ok := v.(*jsonval.Object)
	if !ok {
		t.Fatalf("company = %s, expected expanded object", v.Kind())
	}
	if got := fieldString(t, co, "id"); got != "co1" {
		t.Fatalf("expanded id = %q", got)
	}
	if got := fieldString(t, co, "name"); got != "Initech" {
		t.Fatalf("expanded name = %q", got)
	}
	if _, ok := co.Get("_version"); !ok {
		t.Fatal("expanded document lost meta")
	}
}

func TestForwardIncludeMissingTargetKeepsID(t *testing.T) {
	s := newCRMStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, "Contact", obj("id", "c1", "company", "ghost"), Actor{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	doc, err := s.Get(ctx, "Contact", "c1", GetOptions{Include: []string{"company"}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := fieldString(t, doc.Fields, "company"); got != "ghost" {
		t.Fatalf("company = %q, want raw id", got)
	}

	// A deleted target also stays a raw id.
	if _, err := s.Create(ctx, "Company", obj("id", "co1"), Actor{}); err != nil {
		t.Fatalf("create company: %v", err)
	}
	if err := s.Delete(ctx, "Company", "co1", Actor{}); err != nil {
		t.Fatalf("delete company: %v", err)
	}
	if _, err := s.Update(ctx, "Contact", "c1", obj("company", "co1"), Actor{}); err != nil {
		t.Fatalf("update: %v", err)
	}
	doc, err = s.Get(ctx, "Contact", "c1", GetOptions{Include: []string{"company"}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := fieldString(t, doc.Fields, "company"); got != "co1" {
		t.Fatalf("company = %q, want raw id of deleted target", got)
	}
}

func TestForwardIncludeManyExpandsEach(t *testing.T) {
	s := newCRMStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, "Contact", obj("id", "c2", "name", "Grace"), Actor{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	peers := jsonval.NewArray(jsonval.String("c2"), jsonval.String("ghost"))
	if _, err := s.Create(ctx, "Contact", obj("id", "c1", "name", "Ada", "peers", peers), Actor{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	doc, err := s.Get(ctx, "Contact", "c1", GetOptions{Include: []string{"peers"}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	v, _ := doc.Fields.Get("peers")
	arr, ok := v.(*jsonval.Array)
	if !ok || arr.Len() != 2 {
		t.Fatalf("peers = %v", v)
	}
	first, ok := arr.Elems[0].(*jsonval.Object)
	if !ok {
		t.Fatalf("peers[0] = %s, expected object", arr.Elems[0].Kind())
	}
	if got := fieldString(t, first, "name"); got != "Grace" {
		t.Fatalf("peers[0].name = %q", got)
	}
	if !jsonval.Equal(arr.Elems[1], jsonval.String("ghost")) {
		t.Fatalf("peers[1] = %v, want raw id", arr.Elems[1])
	}
}

func TestInverseIncludeCollectsReferrers(t *testing.T) {
	s := newCRMStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, "Company", obj("id", "co1", "name", "Initech"), Actor{}); err != nil {
		t.Fatalf("create company: %v", err)
	}
	for _, id := range []string{"c1", "c2"} {
		if _, err := s.Create(ctx, "Contact", obj("id", id, "name", id, "company", "co1"), Actor{}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if _, err := s.Create(ctx, "Contact", obj("id", "c3", "name", "elsewhere", "company", "co2"), Actor{}); err != nil {
		t.Fatalf("create c3: %v", err)
	}
	// Deleted referrers never appear.
	if _, err := s.Create(ctx, "Contact", obj("id", "c4", "company", "co1"), Actor{}); err != nil {
		t.Fatalf("create c4: %v", err)
	}
	if err := s.Delete(ctx, "Contact", "c4", Actor{}); err != nil {
		t.Fatalf("delete c4: %v", err)
	}

	doc, err := s.Get(ctx, "Company", "co1", GetOptions{Include: []string{"contacts"}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	v, _ := doc.Fields.Get("contacts")
	arr, ok := v.(*jsonval.Array)
	if !ok {
		t.Fatalf("contacts = %s, expected array", v.Kind())
	}
	if arr.Len() != 2 {
		t.Fatalf("contacts = %d members, want 2", arr.Len())
	}
	first := arr.Elems[0].(*jsonval.Object)
	if got := fieldString(t, first, "id"); got != "c1" {
		t.Fatalf("contacts[0] = %q", got)
	}
}

func TestInverseIncludeEmptyArray(t *testing.T) {
	s := newCRMStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, "Company", obj("id", "co1"), Actor{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	doc, err := s.Get(ctx, "Company", "co1", GetOptions{Include: []string{"contacts"}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	v, ok := doc.Fields.Get("contacts")
	if !ok {
		t.Fatal("contacts not set")
	}
	arr, isArr := v.(*jsonval.Array)
	if !isArr || arr.Len() != 0 {
		t.Fatalf("contacts = %v, want empty array", v)
	}
}

func TestInverseIncludeMatchesIDArrays(t *testing.T) {
	s := newCRMStore(t)
	ctx := context.Background()

	// peers is a forward many-relation Contact -> Contact, so expanding the
	// inverse on a contact must look inside referrers' id arrays.
	sch := mustParseSchema(t, `{
		"Contact": {
			"peers": {"relation": {"type": "forward", "target": "Contact", "many": true}},
			"peerOf": {"relation": {"type": "inverse", "target": "Contact"}}
		}
	}`)
	if err := s.SetSchema(ctx, sch); err != nil {
		t.Fatalf("set schema: %v", err)
	}
	if _, err := s.Create(ctx, "Contact", obj("id", "c1"), Actor{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(ctx, "Contact", obj("id", "c2", "peers", jsonval.NewArray(jsonval.String("c1"))), Actor{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	doc, err := s.Get(ctx, "Contact", "c1", GetOptions{Include: []string{"peerOf"}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	v, _ := doc.Fields.Get("peerOf")
	arr := v.(*jsonval.Array)
	if arr.Len() != 1 {
		t.Fatalf("peerOf = %d members, want 1", arr.Len())
	}
	if got := fieldString(t, arr.Elems[0].(*jsonval.Object), "id"); got != "c2" {
		t.Fatalf("peerOf[0] = %q", got)
	}
}

func TestIncludeDoesNotMutateStoredDocument(t *testing.T) {
	s := newCRMStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, "Company", obj("id", "co1", "name", "Initech"), Actor{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(ctx, "Contact", obj("id", "c1", "company", "co1"), Actor{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Get(ctx, "Contact", "c1", GetOptions{Include: []string{"company"}}); err != nil {
		t.Fatalf("get with include: %v", err)
	}

	// A plain get afterwards still sees the raw id.
	doc, err := s.Get(ctx, "Contact", "c1", GetOptions{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := fieldString(t, doc.Fields, "company"); got != "co1" {
		t.Fatalf("stored document mutated: company = %v", got)
	}
}

func TestIncludeUnknownFieldIgnored(t *testing.T) {
	s := newCRMStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, "Contact", obj("id", "c1", "name", "Ada"), Actor{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	doc, err := s.Get(ctx, "Contact", "c1", GetOptions{Include: []string{"name", "nonexistent"}})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := fieldString(t, doc.Fields, "name"); got != "Ada" {
		t.Fatalf("name = %q", got)
	}
}
