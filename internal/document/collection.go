package document

// Collection holds one model's documents. Insertion order is preserved;
// overwriting an id keeps its position and tombstones keep their slot.
type Collection struct {
	docs  map[string]*Document
	order []string
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{docs: make(map[string]*Document)}
}

// Get returns the document for id, tombstoned or not.
func (c *Collection) Get(id string) (*Document, bool) {
	d, ok := c.docs[id]
	return d, ok
}

// Put inserts or replaces the document for its id.
func (c *Collection) Put(d *Document) {
	if _, ok := c.docs[d.ID]; !ok {
		c.order = append(c.order, d.ID)
	}
	c.docs[d.ID] = d
}

// Len returns the number of documents including tombstones.
func (c *Collection) Len() int { return len(c.docs) }

// Live returns non-deleted documents in insertion order. The slice is fresh;
// the documents are the stored instances.
func (c *Collection) Live() []*Document {
	out := make([]*Document, 0, len(c.order))
	for _, id := range c.order {
		if d := c.docs[id]; d != nil && !d.Deleted() {
			out = append(out, d)
		}
	}
	return out
}

// All returns every document in insertion order, tombstones included.
func (c *Collection) All() []*Document {
	out := make([]*Document, 0, len(c.order))
	for _, id := range c.order {
		if d := c.docs[id]; d != nil {
			out = append(out, d)
		}
	}
	return out
}
