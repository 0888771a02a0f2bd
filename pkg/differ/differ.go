// Package differ compares two schema snapshots of the same table. The
// structural diff is a pure function of its inputs: the same pair always
// produces the same diff, and swapping the inputs produces the structural
// inverse (added and removed trade places, modified entries swap old and
// new). The definition texts can additionally be rendered as a unified
// line diff or as a side-by-side pairing.
package differ

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/nsxbet/sql-governor/pkg/types"
)

// TableDiff represents all structural differences between two captures of
// one table.
type TableDiff struct {
	Table               string                      `json:"table"`
	AddedColumns        []*types.ColumnMetadata     `json:"addedColumns,omitempty"`
	RemovedColumns      []*types.ColumnMetadata     `json:"removedColumns,omitempty"`
	ModifiedColumns     []*ColumnDiff               `json:"modifiedColumns,omitempty"`
	AddedIndexes        []*types.IndexMetadata      `json:"addedIndexes,omitempty"`
	RemovedIndexes      []*types.IndexMetadata      `json:"removedIndexes,omitempty"`
	ModifiedIndexes     []*IndexDiff                `json:"modifiedIndexes,omitempty"`
	AddedForeignKeys    []*types.ForeignKeyMetadata `json:"addedForeignKeys,omitempty"`
	RemovedForeignKeys  []*types.ForeignKeyMetadata `json:"removedForeignKeys,omitempty"`
	ModifiedForeignKeys []*ForeignKeyDiff           `json:"modifiedForeignKeys,omitempty"`
}

// ColumnDiff represents changes to a single column.
type ColumnDiff struct {
	Name    string                `json:"name"`
	Old     *types.ColumnMetadata `json:"old"`
	New     *types.ColumnMetadata `json:"new"`
	Changes []string              `json:"changes"`
}

// IndexDiff represents changes to a single index.
type IndexDiff struct {
	Name    string               `json:"name"`
	Old     *types.IndexMetadata `json:"old"`
	New     *types.IndexMetadata `json:"new"`
	Changes []string             `json:"changes"`
}

// ForeignKeyDiff represents changes to a single foreign key.
type ForeignKeyDiff struct {
	Name    string                    `json:"name"`
	Old     *types.ForeignKeyMetadata `json:"old"`
	New     *types.ForeignKeyMetadata `json:"new"`
	Changes []string                  `json:"changes"`
}

// IsEmpty reports whether the two captures are structurally identical.
func (d *TableDiff) IsEmpty() bool {
	return len(d.AddedColumns) == 0 &&
		len(d.RemovedColumns) == 0 &&
		len(d.ModifiedColumns) == 0 &&
		len(d.AddedIndexes) == 0 &&
		len(d.RemovedIndexes) == 0 &&
		len(d.ModifiedIndexes) == 0 &&
		len(d.AddedForeignKeys) == 0 &&
		len(d.RemovedForeignKeys) == 0 &&
		len(d.ModifiedForeignKeys) == 0
}

// Diff computes the structural differences between two captures of a
// table. A nil capture stands for an absent table, so diffing against nil
// reports everything as added or removed. Output order follows the input
// slices: removed and modified entries in before's order, added entries in
// after's order. Maps are used for membership only, never iterated.
func Diff(before, after *types.TableMetadata) *TableDiff {
	diff := &TableDiff{}
	if after != nil {
		diff.Table = after.Name
	}
	if diff.Table == "" && before != nil {
		diff.Table = before.Name
	}

	beforeColumns := make(map[string]*types.ColumnMetadata)
	for _, column := range columnsOf(before) {
		beforeColumns[strings.ToLower(column.Name)] = column
	}
	afterColumns := make(map[string]*types.ColumnMetadata)
	for _, column := range columnsOf(after) {
		afterColumns[strings.ToLower(column.Name)] = column
	}

	for _, column := range columnsOf(before) {
		other, ok := afterColumns[strings.ToLower(column.Name)]
		if !ok {
			diff.RemovedColumns = append(diff.RemovedColumns, column)
			continue
		}
		if changes := columnChanges(column, other); len(changes) > 0 {
			diff.ModifiedColumns = append(diff.ModifiedColumns, &ColumnDiff{
				Name:    column.Name,
				Old:     column,
				New:     other,
				Changes: changes,
			})
		}
	}
	for _, column := range columnsOf(after) {
		if _, ok := beforeColumns[strings.ToLower(column.Name)]; !ok {
			diff.AddedColumns = append(diff.AddedColumns, column)
		}
	}

	beforeIndexes := make(map[string]*types.IndexMetadata)
	for _, index := range indexesOf(before) {
		beforeIndexes[strings.ToLower(index.Name)] = index
	}
	afterIndexes := make(map[string]*types.IndexMetadata)
	for _, index := range indexesOf(after) {
		afterIndexes[strings.ToLower(index.Name)] = index
	}

	for _, index := range indexesOf(before) {
		other, ok := afterIndexes[strings.ToLower(index.Name)]
		if !ok {
			diff.RemovedIndexes = append(diff.RemovedIndexes, index)
			continue
		}
		if changes := indexChanges(index, other); len(changes) > 0 {
			diff.ModifiedIndexes = append(diff.ModifiedIndexes, &IndexDiff{
				Name:    index.Name,
				Old:     index,
				New:     other,
				Changes: changes,
			})
		}
	}
	for _, index := range indexesOf(after) {
		if _, ok := beforeIndexes[strings.ToLower(index.Name)]; !ok {
			diff.AddedIndexes = append(diff.AddedIndexes, index)
		}
	}

	beforeKeys := make(map[string]*types.ForeignKeyMetadata)
	for _, fk := range foreignKeysOf(before) {
		beforeKeys[strings.ToLower(fk.Name)] = fk
	}
	afterKeys := make(map[string]*types.ForeignKeyMetadata)
	for _, fk := range foreignKeysOf(after) {
		afterKeys[strings.ToLower(fk.Name)] = fk
	}

	for _, fk := range foreignKeysOf(before) {
		other, ok := afterKeys[strings.ToLower(fk.Name)]
		if !ok {
			diff.RemovedForeignKeys = append(diff.RemovedForeignKeys, fk)
			continue
		}
		if changes := foreignKeyChanges(fk, other); len(changes) > 0 {
			diff.ModifiedForeignKeys = append(diff.ModifiedForeignKeys, &ForeignKeyDiff{
				Name:    fk.Name,
				Old:     fk,
				New:     other,
				Changes: changes,
			})
		}
	}
	for _, fk := range foreignKeysOf(after) {
		if _, ok := beforeKeys[strings.ToLower(fk.Name)]; !ok {
			diff.AddedForeignKeys = append(diff.AddedForeignKeys, fk)
		}
	}

	return diff
}

func columnsOf(meta *types.TableMetadata) []*types.ColumnMetadata {
	if meta == nil {
		return nil
	}
	return meta.Columns
}

func indexesOf(meta *types.TableMetadata) []*types.IndexMetadata {
	if meta == nil {
		return nil
	}
	return meta.Indexes
}

func foreignKeysOf(meta *types.TableMetadata) []*types.ForeignKeyMetadata {
	if meta == nil {
		return nil
	}
	return meta.ForeignKeys
}

// columnChanges lists the changed fields. Position is deliberately not
// compared: inserting a column early shifts every later ordinal without
// changing those columns.
func columnChanges(old, new *types.ColumnMetadata) []string {
	var changes []string
	if !strings.EqualFold(old.Type, new.Type) {
		changes = append(changes, "type")
	}
	if old.Nullable != new.Nullable {
		changes = append(changes, "nullable")
	}
	if !equalDefaults(old, new) {
		changes = append(changes, "default")
	}
	if !strings.EqualFold(old.OnUpdate, new.OnUpdate) {
		changes = append(changes, "on_update")
	}
	if old.AutoIncrement != new.AutoIncrement {
		changes = append(changes, "auto_increment")
	}
	if old.Generated != new.Generated {
		changes = append(changes, "generated")
	}
	if old.CharacterSet != new.CharacterSet {
		changes = append(changes, "character_set")
	}
	if old.Collation != new.Collation {
		changes = append(changes, "collation")
	}
	if old.Comment != new.Comment {
		changes = append(changes, "comment")
	}
	return changes
}

func equalDefaults(a, b *types.ColumnMetadata) bool {
	return a.HasDefault == b.HasDefault &&
		a.DefaultNull == b.DefaultNull &&
		a.DefaultString == b.DefaultString &&
		a.DefaultExpression == b.DefaultExpression
}

func indexChanges(old, new *types.IndexMetadata) []string {
	var changes []string
	if !slices.Equal(old.Expressions, new.Expressions) {
		changes = append(changes, "columns")
	}
	if !strings.EqualFold(old.Type, new.Type) {
		changes = append(changes, "type")
	}
	if old.Unique != new.Unique {
		changes = append(changes, "unique")
	}
	if old.Primary != new.Primary {
		changes = append(changes, "primary")
	}
	if old.Visible != new.Visible {
		changes = append(changes, "visible")
	}
	if old.Comment != new.Comment {
		changes = append(changes, "comment")
	}
	return changes
}

func foreignKeyChanges(old, new *types.ForeignKeyMetadata) []string {
	var changes []string
	if !slices.Equal(old.Columns, new.Columns) {
		changes = append(changes, "columns")
	}
	if !strings.EqualFold(old.ReferencedSchema, new.ReferencedSchema) ||
		!strings.EqualFold(old.ReferencedTable, new.ReferencedTable) ||
		!slices.Equal(old.ReferencedColumns, new.ReferencedColumns) {
		changes = append(changes, "references")
	}
	if !strings.EqualFold(old.OnDelete, new.OnDelete) {
		changes = append(changes, "on_delete")
	}
	if !strings.EqualFold(old.OnUpdate, new.OnUpdate) {
		changes = append(changes, "on_update")
	}
	return changes
}

// Unified renders the definition texts of two snapshots as a unified line
// diff. Identical definitions render as an empty string.
func Unified(before, after *types.SchemaSnapshot, fromLabel, toLabel string) (string, error) {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(definitionOf(before)),
		B:        difflib.SplitLines(definitionOf(after)),
		FromFile: fromLabel,
		ToFile:   toLabel,
		Context:  3,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to render unified diff")
	}
	return text, nil
}

// LinePair is one row of a side-by-side rendering. Marker is " " for
// unchanged lines, "-" left only, "+" right only and "|" for changed
// lines.
type LinePair struct {
	Left   string `json:"left"`
	Right  string `json:"right"`
	Marker string `json:"marker"`
}

// SideBySide pairs the definition lines of two snapshots.
func SideBySide(before, after *types.SchemaSnapshot) []*LinePair {
	aLines := definitionLines(before)
	bLines := definitionLines(after)
	if len(aLines) == 0 && len(bLines) == 0 {
		return nil
	}

	var pairs []*LinePair
	matcher := difflib.NewMatcher(aLines, bLines)
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for k := 0; k < op.I2-op.I1; k++ {
				pairs = append(pairs, &LinePair{Left: aLines[op.I1+k], Right: bLines[op.J1+k], Marker: " "})
			}
		case 'r':
			left := op.I2 - op.I1
			right := op.J2 - op.J1
			for k := 0; k < max(left, right); k++ {
				pair := &LinePair{Marker: "|"}
				if k < left {
					pair.Left = aLines[op.I1+k]
				}
				if k < right {
					pair.Right = bLines[op.J1+k]
				}
				pairs = append(pairs, pair)
			}
		case 'd':
			for k := op.I1; k < op.I2; k++ {
				pairs = append(pairs, &LinePair{Left: aLines[k], Marker: "-"})
			}
		case 'i':
			for k := op.J1; k < op.J2; k++ {
				pairs = append(pairs, &LinePair{Right: bLines[k], Marker: "+"})
			}
		}
	}
	return pairs
}

func definitionOf(snapshot *types.SchemaSnapshot) string {
	if snapshot == nil {
		return ""
	}
	return snapshot.Definition
}

func definitionLines(snapshot *types.SchemaSnapshot) []string {
	definition := definitionOf(snapshot)
	if definition == "" {
		return nil
	}
	return strings.Split(definition, "\n")
}
