package services

import (
  "reflect"
  "strings"
  "testing"
)

func TestGenerateAssignmentsAllLocked(t *testing.T) {
  slots := []slotSpec{
    {id: "video", locked: true, candidates: []string{"v1", "v2"}},
    {id: "image", locked: true, candidates: []string{"i1"}},
    {id: "copy", locked: true, candidates: []string{"c1", "c2", "c3"}},
  }

  got, err := generateAssignments(slots, nil, 100)
  if err != nil {
    t.Fatalf("generateAssignments: %v", err)
  }
  if len(got) != 1 {
    t.Fatalf("got %d assignments, want 1", len(got))
  }
  want := map[string]string{"video": "v1", "image": "i1", "copy": "c1"}
  if !reflect.DeepEqual(got[0], want) {
    t.Fatalf("got %v, want %v", got[0], want)
  }
}

func TestGenerateAssignmentsCap(t *testing.T) {
  slots := []slotSpec{
    {id: "a", candidates: []string{"a1", "a2", "a3"}},
    {id: "b", candidates: []string{"b1", "b2", "b3"}},
    {id: "c", candidates: []string{"c1", "c2", "c3"}},
  }

  cases := []struct {
    name string
    max  int
    want int
  }{
    {name: "cap_below_product", max: 5, want: 5},
    {name: "cap_equals_product", max: 27, want: 27},
    {name: "cap_above_product", max: 100, want: 27},
    {name: "cap_one", max: 1, want: 1},
  }
  for _, tc := range cases {
    t.Run(tc.name, func(t *testing.T) {
      got, err := generateAssignments(slots, nil, tc.max)
      if err != nil {
        t.Fatalf("generateAssignments: %v", err)
      }
      if len(got) != tc.want {
        t.Fatalf("got %d assignments, want %d", len(got), tc.want)
      }
    })
  }
}

func TestGenerateAssignmentsInvalidCap(t *testing.T) {
  slots := []slotSpec{{id: "a", candidates: []string{"a1"}}}
  if _, err := generateAssignments(slots, nil, 0); err == nil {
    t.Fatal("expected error for max_combinations < 1")
  }
}

func TestGenerateAssignmentsDeterministic(t *testing.T) {
  slots := []slotSpec{
    {id: "a", candidates: []string{"a1", "a2"}},
    {id: "b", candidates: []string{"b1", "b2", "b3"}},
  }
  first, err := generateAssignments(slots, nil, 10)
  if err != nil {
    t.Fatalf("generateAssignments: %v", err)
  }
  second, err := generateAssignments(slots, nil, 10)
  if err != nil {
    t.Fatalf("generateAssignments: %v", err)
  }
  if !reflect.DeepEqual(first, second) {
    t.Fatalf("two identical calls produced different output:\n%v\n%v", first, second)
  }
}

func TestGenerateAssignmentsVideoImageLockedCopy(t *testing.T) {
  slots := []slotSpec{
    {id: "video", candidates: []string{"v1", "v2"}},
    {id: "image", candidates: []string{"i1", "i2"}},
    {id: "copy", locked: true, candidates: []string{"c1"}},
  }

  got, err := generateAssignments(slots, nil, 10)
  if err != nil {
    t.Fatalf("generateAssignments: %v", err)
  }
  if len(got) != 4 {
    t.Fatalf("got %d assignments, want 4", len(got))
  }
  seen := map[string]bool{}
  for _, assignment := range got {
    if assignment["copy"] != "c1" {
      t.Fatalf("locked slot not fixed to first candidate: %v", assignment)
    }
    seen[assignment["video"]+"/"+assignment["image"]] = true
  }
  for _, pair := range []string{"v1/i1", "v1/i2", "v2/i1", "v2/i2"} {
    if !seen[pair] {
      t.Fatalf("missing video/image pairing %s; got %v", pair, seen)
    }
  }
}

func TestGenerateAssignmentsSkipsEmptySlots(t *testing.T) {
  slots := []slotSpec{
    {id: "a", candidates: []string{"a1", "a2"}},
    {id: "empty", candidates: nil},
    {id: "b", candidates: []string{"b1"}},
  }
  got, err := generateAssignments(slots, nil, 10)
  if err != nil {
    t.Fatalf("generateAssignments: %v", err)
  }
  if len(got) != 2 {
    t.Fatalf("got %d assignments, want 2", len(got))
  }
  for _, assignment := range got {
    if _, ok := assignment["empty"]; ok {
      t.Fatalf("empty slot contributed an assignment: %v", assignment)
    }
  }
}

func TestGenerateAssignmentsAllSlotsEmptyFails(t *testing.T) {
  slots := []slotSpec{
    {id: "video", candidates: nil},
    {id: "image", candidates: []string{}},
  }
  got, err := generateAssignments(slots, nil, 10)
  if err == nil {
    t.Fatalf("expected error, got %d assignments", len(got))
  }
  if !strings.Contains(err.Error(), "No eligible slots") {
    t.Fatalf("unexpected error: %v", err)
  }
}

func TestGenerateAssignmentsVarySubset(t *testing.T) {
  slots := []slotSpec{
    {id: "a", candidates: []string{"a1", "a2"}},
    {id: "b", candidates: []string{"b1", "b2"}},
  }
  vary := map[string]bool{"a": true}

  got, err := generateAssignments(slots, vary, 10)
  if err != nil {
    t.Fatalf("generateAssignments: %v", err)
  }
  if len(got) != 2 {
    t.Fatalf("got %d assignments, want 2", len(got))
  }
  for _, assignment := range got {
    if assignment["b"] != "b1" {
      t.Fatalf("non-varying slot should use first candidate: %v", assignment)
    }
  }
}

func TestAssignmentSignatureOrderIndependent(t *testing.T) {
  a := map[string]string{"x": "1", "y": "2"}
  b := map[string]string{"y": "2", "x": "1"}
  if assignmentSignature(a) != assignmentSignature(b) {
    t.Fatal("signature should not depend on map iteration order")
  }
  c := map[string]string{"x": "1", "y": "3"}
  if assignmentSignature(a) == assignmentSignature(c) {
    t.Fatal("different assignments must not share a signature")
  }
}
