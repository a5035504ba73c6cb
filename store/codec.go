// Package store holds the row encoding shared by the SQL repositories.
//
// Dates are stored as YYYY-MM-DD text. Leave ranges are two nullable
// columns; a row whose range does not parse is loaded with a nil range
// instead of failing the whole snapshot, so one corrupt legacy row never
// locks everybody out.
package store

import (
	"database/sql"
	"fmt"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/timeoff"
)

// RecordRow is the flat form of a LeaveRecord.
type RecordRow struct {
	EmployeeID  string
	Seq         int
	DaysTaken   int
	Category    string
	CreatedOn   string
	RangeStart  sql.NullString
	RangeEnd    sql.NullString
	Reason      string
	State       string
	EvidenceRef string
}

// EmployeeRow is the flat form of an Employee without its records.
type EmployeeRow struct {
	ID             string
	Position       int
	Name           string
	HireDate       string
	Country        string
	WorksSaturday  bool
	Role           string
	CredentialHash string
}

// EncodeEmployee flattens an employee stored at the given position.
func EncodeEmployee(e timeoff.Employee, position int) EmployeeRow {
	return EmployeeRow{
		ID:             string(e.ID),
		Position:       position,
		Name:           e.Name,
		HireDate:       e.HireDate.String(),
		Country:        string(e.Country),
		WorksSaturday:  e.WorksSaturday,
		Role:           string(e.Role),
		CredentialHash: e.CredentialHash,
	}
}

// DecodeEmployee rebuilds an employee. A bad hire date is an error since
// every balance depends on it.
func DecodeEmployee(row EmployeeRow) (timeoff.Employee, error) {
	hire, err := generic.ParseDate(row.HireDate)
	if err != nil {
		return timeoff.Employee{}, fmt.Errorf("employee %s: hire date: %w", row.ID, err)
	}
	return timeoff.Employee{
		ID:             generic.EntityID(row.ID),
		Name:           row.Name,
		HireDate:       hire,
		Country:        timeoff.Country(row.Country),
		WorksSaturday:  row.WorksSaturday,
		Role:           timeoff.Role(row.Role),
		CredentialHash: row.CredentialHash,
	}, nil
}

// EncodeRecord flattens the record at position seq of an employee.
func EncodeRecord(employeeID generic.EntityID, seq int, r timeoff.LeaveRecord) RecordRow {
	row := RecordRow{
		EmployeeID:  string(employeeID),
		Seq:         seq,
		DaysTaken:   r.DaysTaken,
		Category:    string(r.Category),
		CreatedOn:   r.CreatedOn.String(),
		Reason:      r.Reason,
		State:       string(r.State),
		EvidenceRef: r.EvidenceRef,
	}
	if r.Range != nil {
		row.RangeStart = sql.NullString{String: r.Range.Start.String(), Valid: true}
		row.RangeEnd = sql.NullString{String: r.Range.End.String(), Valid: true}
	}
	return row
}

// DecodeRecord rebuilds a record. Unparsable dates degrade to zero values.
func DecodeRecord(row RecordRow) timeoff.LeaveRecord {
	created, _ := generic.ParseDate(row.CreatedOn)
	return timeoff.LeaveRecord{
		DaysTaken:   row.DaysTaken,
		Category:    timeoff.Category(row.Category),
		CreatedOn:   created,
		Range:       decodeRange(row.RangeStart, row.RangeEnd),
		Reason:      row.Reason,
		State:       timeoff.State(row.State),
		EvidenceRef: row.EvidenceRef,
	}
}

func decodeRange(start, end sql.NullString) *generic.Period {
	if !start.Valid || !end.Valid {
		return nil
	}
	s, err := generic.ParseDate(start.String)
	if err != nil {
		return nil
	}
	e, err := generic.ParseDate(end.String)
	if err != nil {
		return nil
	}
	return &generic.Period{Start: s, End: e}
}

// Assemble groups decoded records under their employees, preserving the
// employee order and each employee's record order (rows sorted by seq).
func Assemble(employees []timeoff.Employee, records []RecordRow) []timeoff.Employee {
	index := make(map[generic.EntityID]int, len(employees))
	for i, e := range employees {
		index[e.ID] = i
	}
	for _, row := range records {
		i, ok := index[generic.EntityID(row.EmployeeID)]
		if !ok {
			continue
		}
		employees[i].Records = append(employees[i].Records, DecodeRecord(row))
	}
	return employees
}
