package task

// Cache is the in-memory task index: one authoritative id->Task map
// plus derived indexes by file, tag, project, context, calendar day
// (due/start/scheduled), completion and priority.
//
// Invariant: an id appears in a derived bucket if and only if the
// authoritative record's field currently has that value. Every write
// path removes stale memberships before adding new ones. The cache is
// mutated only on the orchestrating goroutine and carries no lock.
type Cache struct {
	tasks map[string]*Task
	order map[string]int
	seq   int

	byFile      map[string]idSet
	byTag       map[string]idSet
	byProject   map[string]idSet
	byContext   map[string]idSet
	byDue       map[string]idSet
	byStart     map[string]idSet
	byScheduled map[string]idSet
	byCompleted map[bool]idSet
	byPriority  map[int]idSet
}

type idSet map[string]struct{}

// NewCache creates an empty index.
func NewCache() *Cache {
	return &Cache{
		tasks:       make(map[string]*Task),
		order:       make(map[string]int),
		byFile:      make(map[string]idSet),
		byTag:       make(map[string]idSet),
		byProject:   make(map[string]idSet),
		byContext:   make(map[string]idSet),
		byDue:       make(map[string]idSet),
		byStart:     make(map[string]idSet),
		byScheduled: make(map[string]idSet),
		byCompleted: make(map[bool]idSet),
		byPriority:  make(map[int]idSet),
	}
}

// Len returns the number of indexed tasks.
func (c *Cache) Len() int {
	return len(c.tasks)
}

// Clear drops every task and derived bucket, keeping the cache usable.
func (c *Cache) Clear() {
	*c = *NewCache()
}

// Get returns the task with the given id, or nil.
func (c *Cache) Get(id string) *Task {
	return c.tasks[id]
}

// Upsert inserts or replaces a task. On replacement the old record's
// memberships are removed from every derived bucket before the new
// record's are added, so a partial change never leaves the task visible
// under a stale bucket.
func (c *Cache) Upsert(t *Task) {
	if old, ok := c.tasks[t.ID]; ok {
		c.removeMemberships(old)
	} else {
		c.seq++
		c.order[t.ID] = c.seq
	}
	c.tasks[t.ID] = t
	c.addMemberships(t)
}

// Remove deletes a task from the authoritative map and every bucket.
func (c *Cache) Remove(id string) {
	t, ok := c.tasks[id]
	if !ok {
		return
	}
	c.removeMemberships(t)
	delete(c.tasks, id)
	delete(c.order, id)
}

// RemoveFile drops every task anchored to the given file and returns
// how many were removed. Used when a source disappears or before a file
// is re-indexed.
func (c *Cache) RemoveFile(path string) int {
	bucket := c.byFile[path]
	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	for _, id := range ids {
		c.Remove(id)
	}
	return len(ids)
}

// ByProject returns the ids indexed under the given project.
func (c *Cache) ByProject(name string) []string {
	return bucketIDs(c.byProject[name])
}

// ByTag returns the ids indexed under the given tag.
func (c *Cache) ByTag(tag string) []string {
	return bucketIDs(c.byTag[tag])
}

// ByFile returns the ids anchored to the given file.
func (c *Cache) ByFile(path string) []string {
	return bucketIDs(c.byFile[path])
}

// ByDueDay returns the ids due on the given local calendar day
// (formatted 2006-01-02).
func (c *Cache) ByDueDay(day string) []string {
	return bucketIDs(c.byDue[day])
}

// ByCompleted returns the ids with the given completion state.
func (c *Cache) ByCompleted(done bool) []string {
	return bucketIDs(c.byCompleted[done])
}

// ByPriority returns the ids with the given priority.
func (c *Cache) ByPriority(n int) []string {
	return bucketIDs(c.byPriority[n])
}

func bucketIDs(s idSet) []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}

func (c *Cache) addMemberships(t *Task) {
	addTo(c.byFile, t.FilePath, t.ID)
	for _, tag := range t.Metadata.Tags {
		addTo(c.byTag, tag, t.ID)
	}
	if p := t.Metadata.DisplayProject(); p != "" {
		addTo(c.byProject, p, t.ID)
	}
	if t.Metadata.Context != "" {
		addTo(c.byContext, t.Metadata.Context, t.ID)
	}
	if day := DayKey(t.Metadata.Due); day != "" {
		addTo(c.byDue, day, t.ID)
	}
	if day := DayKey(t.Metadata.Start); day != "" {
		addTo(c.byStart, day, t.ID)
	}
	if day := DayKey(t.Metadata.Scheduled); day != "" {
		addTo(c.byScheduled, day, t.ID)
	}
	addToBool(c.byCompleted, t.Completed, t.ID)
	if t.Metadata.Priority != 0 {
		addToInt(c.byPriority, t.Metadata.Priority, t.ID)
	}
}

func (c *Cache) removeMemberships(t *Task) {
	removeFrom(c.byFile, t.FilePath, t.ID)
	for _, tag := range t.Metadata.Tags {
		removeFrom(c.byTag, tag, t.ID)
	}
	if p := t.Metadata.DisplayProject(); p != "" {
		removeFrom(c.byProject, p, t.ID)
	}
	if t.Metadata.Context != "" {
		removeFrom(c.byContext, t.Metadata.Context, t.ID)
	}
	if day := DayKey(t.Metadata.Due); day != "" {
		removeFrom(c.byDue, day, t.ID)
	}
	if day := DayKey(t.Metadata.Start); day != "" {
		removeFrom(c.byStart, day, t.ID)
	}
	if day := DayKey(t.Metadata.Scheduled); day != "" {
		removeFrom(c.byScheduled, day, t.ID)
	}
	removeFromBool(c.byCompleted, t.Completed, t.ID)
	if t.Metadata.Priority != 0 {
		removeFromInt(c.byPriority, t.Metadata.Priority, t.ID)
	}
}

func addTo(m map[string]idSet, key, id string) {
	if key == "" {
		return
	}
	s, ok := m[key]
	if !ok {
		s = make(idSet)
		m[key] = s
	}
	s[id] = struct{}{}
}

func removeFrom(m map[string]idSet, key, id string) {
	if key == "" {
		return
	}
	if s, ok := m[key]; ok {
		delete(s, id)
		if len(s) == 0 {
			delete(m, key)
		}
	}
}

func addToBool(m map[bool]idSet, key bool, id string) {
	s, ok := m[key]
	if !ok {
		s = make(idSet)
		m[key] = s
	}
	s[id] = struct{}{}
}

func removeFromBool(m map[bool]idSet, key bool, id string) {
	if s, ok := m[key]; ok {
		delete(s, id)
		if len(s) == 0 {
			delete(m, key)
		}
	}
}

func addToInt(m map[int]idSet, key int, id string) {
	s, ok := m[key]
	if !ok {
		s = make(idSet)
		m[key] = s
	}
	s[id] = struct{}{}
}

func removeFromInt(m map[int]idSet, key int, id string) {
	if s, ok := m[key]; ok {
		delete(s, id)
		if len(s) == 0 {
			delete(m, key)
		}
	}
}
