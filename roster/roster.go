/*
Package roster loads the static membership data the reconciler runs
against: the staff directory and the exempt-student list.

FILE FORMATS:
  Staff directory (JSON array):
    [{"name": "Alice", "calendar": 1234567, "discord": "200000000000000001"}]

  Exempt students (plain text, one email per line):
    scholarship@example.com
    trial-student@example.com

Both files are read once at startup and treated as read-only for the whole
run.
*/
package roster

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

// StaffMember links a teacher to their calendar and notification target.
type StaffMember struct {
	Name       string `json:"name"`
	CalendarID int64  `json:"calendar"`
	DiscordID  string `json:"discord"`
}

// LoadStaff reads the staff directory from a JSON file.
func LoadStaff(path string) ([]StaffMember, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read staff directory")
	}

	var staff []StaffMember
	if err := json.Unmarshal(raw, &staff); err != nil {
		return nil, errors.Wrapf(err, "parse staff directory %s", path)
	}
	return staff, nil
}

// ExemptSet is the set of client emails excluded from unpaid-lesson
// reporting and certificate allocation.
type ExemptSet map[string]struct{}

func (s ExemptSet) Contains(email string) bool {
	_, ok := s[email]
	return ok
}

// LoadExempt reads the exempt-student list, one email per line. Blank
// lines and surrounding whitespace are ignored.
func LoadExempt(path string) (ExemptSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "read exempt list")
	}
	defer f.Close()

	exempt := ExemptSet{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		email := strings.TrimSpace(scanner.Text())
		if email == "" {
			continue
		}
		exempt[email] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "scan exempt list %s", path)
	}
	return exempt, nil
}
