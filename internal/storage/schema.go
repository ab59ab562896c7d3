package storage

// schemaVersion is kept in PRAGMA user_version. A database holding an older
// version has its courses table dropped and recreated.
const schemaVersion = 1

const dropSchema = `DROP TABLE IF EXISTS courses;`

const schema = `
-- The 'courses' table holds the catalog. AUTOINCREMENT guarantees ids start
-- at 1 and are never reused, so 0 stays free as a "no course" marker.
CREATE TABLE IF NOT EXISTS courses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT,
    description TEXT
);
`
