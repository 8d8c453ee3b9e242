package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/lyzr/orgsync/common/hierarchy"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/models"
)

var (
	// ErrRootNotFound is returned when the environment has no directory for a root
	ErrRootNotFound = errors.New("root directory not found")

	// ErrStateNotFound is returned when no state file was captured for a root
	ErrStateNotFound = errors.New("state file not found")

	// ErrBaselineNotFound is returned when no policy baseline was captured for a root
	ErrBaselineNotFound = errors.New("policy baseline not found")
)

// SnapshotRepository reads and writes the directory tree of a root
type SnapshotRepository struct {
	store     *envStore
	stateFile string
	log       *logger.Logger
}

// NewSnapshotRepository creates a repository over the environment at baseURL
func NewSnapshotRepository(fs afs.Service, baseURL, stateFile string, log *logger.Logger) *SnapshotRepository {
	if stateFile == "" {
		stateFile = hierarchy.StateFile
	}
	return &SnapshotRepository{
		store:     &envStore{fs: fs, baseURL: baseURL},
		stateFile: stateFile,
		log:       log,
	}
}

// Read loads the locally authored tree of a root. Folders without a _meta.yaml
// become nodes without an id. Inherited policy entries are not read.
func (r *SnapshotRepository) Read(ctx context.Context, rootID string) (*hierarchy.Snapshot, error) {
	ok, err := r.store.exists(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, rootID)
	}

	t, err := r.store.list(ctx, rootID)
	if err != nil {
		return nil, err
	}

	type entity struct {
		dir string
		ref hierarchy.NodeRef
	}
	var entities []entity
	for dir := range t.dirs {
		if !r.isEntityDir(rootID, dir) || isMarker(dir) {
			continue
		}
		ref, err := hierarchy.DecodePath(dir)
		if err != nil {
			r.log.Warn("ignoring folder that is not an entity", "path", dir, "error", err)
			continue
		}
		entities = append(entities, entity{dir: dir, ref: ref})
	}
	// parents before children
	sort.Slice(entities, func(i, j int) bool {
		di, dj := strings.Count(entities[i].dir, "/"), strings.Count(entities[j].dir, "/")
		if di != dj {
			return di < dj
		}
		return entities[i].dir < entities[j].dir
	})

	snap := hierarchy.NewSnapshot(rootID)
	for _, e := range entities {
		node := &models.HierarchyNode{
			Name: e.ref.Name,
			Kind: e.ref.Kind,
			Path: e.ref.LogicalPath(),
		}
		if obj, ok := t.files[join(e.dir, hierarchy.MetaFile)]; ok {
			data, err := r.store.read(ctx, obj)
			if err != nil {
				return nil, err
			}
			var meta models.EntityMeta
			if err := yaml.Unmarshal(data, &meta); err != nil {
				return nil, fmt.Errorf("parse %s: %w", join(e.dir, hierarchy.MetaFile), err)
			}
			node.ID = meta.Id
			node.Arn = meta.Arn
			node.Email = meta.Email
			node.Status = meta.Status
			if node.IsRoot() {
				node.Name = meta.Name
			}
		}
		if node.IsRoot() {
			// the root directory is named after its id
			if node.ID == "" {
				node.ID = rootID
			}
			if node.Name == "" {
				node.Name = rootID
			}
		}

		key, err := snap.Graph.Add(node)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.dir, err)
		}

		if err := r.readPolicyRecord(ctx, t, e.dir, key, node, snap); err != nil {
			return nil, err
		}
		if err := r.readDelegated(ctx, t, e.dir, key, node, snap); err != nil {
			return nil, err
		}
	}
	if snap.Graph.Root() == nil {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, rootID)
	}

	if err := r.readPolicies(ctx, t, rootID, snap); err != nil {
		return nil, err
	}

	r.log.Debug("local tree read",
		"root_id", rootID,
		"nodes", len(snap.Graph.Nodes),
		"policies", len(snap.Policies),
	)
	return snap, nil
}

func (r *SnapshotRepository) readPolicyRecord(ctx context.Context, t *tree, dir, key string, node *models.HierarchyNode, snap *hierarchy.Snapshot) error {
	obj, ok := t.files[join(dir, hierarchy.PolicyRecordFile)]
	if !ok {
		return nil
	}
	data, err := r.store.read(ctx, obj)
	if err != nil {
		return err
	}
	var record models.PolicyRecord
	if err := yaml.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("parse %s: %w", join(dir, hierarchy.PolicyRecordFile), err)
	}
	for _, entry := range record.Attached {
		snap.Attachments[key] = append(snap.Attachments[key], models.PolicyAttachment{
			PolicyID:   entry.Id,
			PolicyName: entry.Name,
			TargetID:   node.ID,
			Origin:     models.OriginAttached,
		})
	}
	return nil
}

func (r *SnapshotRepository) readDelegated(ctx context.Context, t *tree, dir, key string, node *models.HierarchyNode, snap *hierarchy.Snapshot) error {
	obj, ok := t.files[join(dir, hierarchy.DelegatedAdministratorsFile)]
	if !ok {
		return nil
	}
	if !node.IsAccount() {
		r.log.Warn("ignoring delegated administrators record outside an account", "path", dir)
		return nil
	}
	data, err := r.store.read(ctx, obj)
	if err != nil {
		return err
	}
	var services []models.DelegatedAdministrator
	if err := yaml.Unmarshal(data, &services); err != nil {
		return fmt.Errorf("parse %s: %w", join(dir, hierarchy.DelegatedAdministratorsFile), err)
	}
	for i := range services {
		services[i].AccountID = node.ID
	}
	if services == nil {
		services = []models.DelegatedAdministrator{}
	}
	snap.Delegated[key] = services
	return nil
}

func (r *SnapshotRepository) readPolicies(ctx context.Context, t *tree, rootID string, snap *hierarchy.Snapshot) error {
	prefix := join(rootID, hierarchy.PoliciesDir, hierarchy.ServiceControlPoliciesDir) + "/"

	var dirs []string
	for dir := range t.dirs {
		if rest, ok := strings.CutPrefix(dir, prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		docObj, ok := t.files[join(dir, hierarchy.PolicyDocumentFile)]
		if !ok {
			r.log.Warn("policy directory has no document, skipping", "path", dir)
			continue
		}
		content, err := r.store.read(ctx, docObj)
		if err != nil {
			return err
		}
		if !json.Valid(content) {
			return fmt.Errorf("%s is not valid JSON", join(dir, hierarchy.PolicyDocumentFile))
		}

		policy := models.Policy{
			Summary: models.PolicySummary{Name: dir[strings.LastIndex(dir, "/")+1:]},
			Content: string(content),
		}
		if metaObj, ok := t.files[join(dir, hierarchy.MetaFile)]; ok {
			data, err := r.store.read(ctx, metaObj)
			if err != nil {
				return err
			}
			if err := yaml.Unmarshal(data, &policy.Summary); err != nil {
				return fmt.Errorf("parse %s: %w", join(dir, hierarchy.MetaFile), err)
			}
		}
		snap.Policies = append(snap.Policies, policy)
	}
	snap.SortPolicies()
	return nil
}

// isEntityDir reports whether dir is the root itself or sits below one of its
// entity containers. Policy and migration folders are not entities.
func (r *SnapshotRepository) isEntityDir(rootID, dir string) bool {
	if dir == rootID {
		return true
	}
	rest, ok := strings.CutPrefix(dir, rootID+"/")
	if !ok {
		return false
	}
	first, _, _ := strings.Cut(rest, "/")
	return first == hierarchy.OrganizationalUnitsDir || first == hierarchy.AccountsDir
}

// Write lays out a fetched snapshot as a directory tree. Entity and policy
// folders the snapshot no longer places where they are, and existing attachment
// and delegated administrator records, are removed first.
func (r *SnapshotRepository) Write(ctx context.Context, snap *hierarchy.Snapshot) error {
	if err := r.pruneStale(ctx, snap); err != nil {
		return err
	}
	if err := r.removeRecords(ctx, snap.RootID); err != nil {
		return err
	}

	inherited := hierarchy.RecomputeInherited(snap.Graph, snap.Attachments)

	err := snap.Graph.Walk(func(key string, node *models.HierarchyNode) error {
		dir := snap.Graph.Dir(key)
		meta := models.EntityMeta{
			Id:     node.ID,
			Name:   node.Name,
			Type:   string(node.Kind),
			Arn:    node.Arn,
			Email:  node.Email,
			Status: node.Status,
		}
		if err := r.store.writeYAML(ctx, join(dir, hierarchy.MetaFile), &meta); err != nil {
			return err
		}

		record := models.PolicyRecord{
			Attached:  recordEntries(snap, snap.Attachments[key]),
			Inherited: recordEntries(snap, inherited[key]),
		}
		if len(record.Attached) > 0 || len(record.Inherited) > 0 {
			if err := r.store.writeYAML(ctx, join(dir, hierarchy.PolicyRecordFile), &record); err != nil {
				return err
			}
		}

		if services, ok := snap.Delegated[key]; ok && node.IsAccount() {
			if err := r.store.writeYAML(ctx, join(dir, hierarchy.DelegatedAdministratorsFile), pruneDelegated(services)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, policy := range snap.Policies {
		dir := join(snap.RootID, hierarchy.PoliciesDir, hierarchy.ServiceControlPoliciesDir, policy.Summary.Name)
		if err := r.store.write(ctx, join(dir, hierarchy.PolicyDocumentFile), indentJSON(policy.Content)); err != nil {
			return err
		}
		if err := r.store.writeYAML(ctx, join(dir, hierarchy.MetaFile), &policy.Summary); err != nil {
			return err
		}
	}

	r.log.Info("tree written",
		"root_id", snap.RootID,
		"nodes", len(snap.Graph.Nodes),
		"policies", len(snap.Policies),
	)
	return nil
}

// relocation is a folder without an id copied out of a directory about to be removed
type relocation struct {
	dirs  []string
	files map[string][]byte
}

// pruneStale removes every folder whose recorded id the snapshot places
// elsewhere or no longer contains. Folders without an id below a removed
// directory follow their nearest identified parent to its new location.
func (r *SnapshotRepository) pruneStale(ctx context.Context, snap *hierarchy.Snapshot) error {
	ok, err := r.store.exists(ctx, snap.RootID)
	if err != nil || !ok {
		return err
	}
	t, err := r.store.list(ctx, snap.RootID)
	if err != nil {
		return err
	}

	// directory -> id recorded in its _meta.yaml
	ids := make(map[string]string)
	var entityDirs []string
	for dir := range t.dirs {
		if dir == snap.RootID || !r.isEntityDir(snap.RootID, dir) {
			continue
		}
		if _, err := hierarchy.DecodePath(dir); err != nil {
			continue
		}
		entityDirs = append(entityDirs, dir)
		id, err := r.recordedID(ctx, t, dir)
		if err != nil {
			return err
		}
		if id != "" {
			ids[dir] = id
		}
	}
	// a parent sorts before everything below it
	sort.Strings(entityDirs)

	var stale []string
	for _, dir := range entityDirs {
		id, ok := ids[dir]
		if !ok || under(dir, stale) {
			continue
		}
		if entry, found := snap.Graph.ByID[id]; found && entry.Path == dir {
			continue
		}
		stale = append(stale, dir)
	}

	var moves []relocation
	for _, dir := range entityDirs {
		if _, identified := ids[dir]; identified || !under(dir, stale) {
			continue
		}
		parent := path.Dir(path.Dir(dir))
		parentID, identified := ids[parent]
		if !identified {
			// travels with its parent
			continue
		}
		entry, found := snap.Graph.ByID[parentID]
		if !found {
			r.log.Warn("dropping local folder whose parent left the organization",
				"path", dir,
				"parent_id", parentID,
			)
			continue
		}
		move, err := r.collect(ctx, t, dir, join(entry.Path, path.Base(path.Dir(dir)), path.Base(dir)))
		if err != nil {
			return err
		}
		moves = append(moves, move)
	}

	stale = append(stale, r.stalePolicies(ctx, t, snap)...)
	for _, dir := range stale {
		r.log.Info("removing stale folder", "path", dir, "root_id", snap.RootID)
		if err := r.store.remove(ctx, dir); err != nil {
			return err
		}
	}

	for _, move := range moves {
		for _, dir := range move.dirs {
			if err := r.store.mkdir(ctx, dir); err != nil {
				return err
			}
		}
		for p, data := range move.files {
			if err := r.store.write(ctx, p, data); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *SnapshotRepository) recordedID(ctx context.Context, t *tree, dir string) (string, error) {
	obj, ok := t.files[join(dir, hierarchy.MetaFile)]
	if !ok {
		return "", nil
	}
	data, err := r.store.read(ctx, obj)
	if err != nil {
		return "", err
	}
	var meta models.EntityMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return "", fmt.Errorf("parse %s: %w", join(dir, hierarchy.MetaFile), err)
	}
	return meta.Id, nil
}

// collect reads the subtree at src into memory, rebased onto dst
func (r *SnapshotRepository) collect(ctx context.Context, t *tree, src, dst string) (relocation, error) {
	move := relocation{files: make(map[string][]byte)}
	for dir := range t.dirs {
		if rest, ok := strings.CutPrefix(dir, src); ok && (rest == "" || strings.HasPrefix(rest, "/")) {
			move.dirs = append(move.dirs, dst+rest)
		}
	}
	sort.Strings(move.dirs)
	for p, obj := range t.files {
		rest, ok := strings.CutPrefix(p, src+"/")
		if !ok {
			continue
		}
		data, err := r.store.read(ctx, obj)
		if err != nil {
			return relocation{}, err
		}
		move.files[join(dst, rest)] = data
	}
	r.log.Info("relocating local folder", "from", src, "to", dst)
	return move, nil
}

// stalePolicies lists policy folders recording an id the snapshot no longer
// holds under that name
func (r *SnapshotRepository) stalePolicies(ctx context.Context, t *tree, snap *hierarchy.Snapshot) []string {
	prefix := join(snap.RootID, hierarchy.PoliciesDir, hierarchy.ServiceControlPoliciesDir) + "/"
	var stale []string
	for dir := range t.dirs {
		name, ok := strings.CutPrefix(dir, prefix)
		if !ok || name == "" || strings.Contains(name, "/") {
			continue
		}
		obj, ok := t.files[join(dir, hierarchy.MetaFile)]
		if !ok {
			continue
		}
		data, err := r.store.read(ctx, obj)
		if err != nil {
			r.log.Warn("cannot read policy metadata", "path", dir, "error", err)
			continue
		}
		var summary models.PolicySummary
		if err := yaml.Unmarshal(data, &summary); err != nil || summary.Id == "" {
			continue
		}
		if policy, found := snap.PolicyByID(summary.Id); found && policy.Summary.Name == name {
			continue
		}
		stale = append(stale, dir)
	}
	sort.Strings(stale)
	return stale
}

func isMarker(dir string) bool {
	base := path.Base(dir)
	return base == hierarchy.OrganizationalUnitsDir || base == hierarchy.AccountsDir
}

func under(dir string, parents []string) bool {
	for _, p := range parents {
		if strings.HasPrefix(dir, p+"/") {
			return true
		}
	}
	return false
}

// removeRecords deletes every attachment and delegated administrator record below a root
func (r *SnapshotRepository) removeRecords(ctx context.Context, rootID string) error {
	ok, err := r.store.exists(ctx, rootID)
	if err != nil || !ok {
		return err
	}
	t, err := r.store.list(ctx, rootID)
	if err != nil {
		return err
	}
	for p := range t.files {
		name := p[strings.LastIndex(p, "/")+1:]
		if name != hierarchy.PolicyRecordFile && name != hierarchy.DelegatedAdministratorsFile {
			continue
		}
		if err := r.store.remove(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func recordEntries(snap *hierarchy.Snapshot, attachments []models.PolicyAttachment) []models.PolicyRecordEntry {
	entries := make([]models.PolicyRecordEntry, 0, len(attachments))
	for _, a := range attachments {
		entry := models.PolicyRecordEntry{Id: a.PolicyID, Name: a.PolicyName, Source: a.Source}
		policy, ok := snap.PolicyByID(a.PolicyID)
		if !ok {
			policy, ok = snap.PolicyByName(a.PolicyName)
		}
		if ok {
			entry.Id = policy.Summary.Id
			entry.Arn = policy.Summary.Arn
			entry.Name = policy.Summary.Name
			entry.Description = policy.Summary.Description
			entry.Type = policy.Summary.Type
			entry.AwsManaged = policy.Summary.AwsManaged
		}
		entries = append(entries, entry)
	}
	return entries
}

func pruneDelegated(services []models.DelegatedAdministrator) []models.DelegatedAdministrator {
	out := make([]models.DelegatedAdministrator, len(services))
	for i, svc := range services {
		out[i] = models.DelegatedAdministrator{
			ServicePrincipal:      svc.ServicePrincipal,
			DelegationEnabledDate: svc.DelegationEnabledDate,
		}
	}
	return out
}

func indentJSON(content string) []byte {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(content), "", "    "); err != nil {
		return []byte(content)
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// WriteState persists a fetched snapshot as the captured baseline of a root
func (r *SnapshotRepository) WriteState(ctx context.Context, snap *hierarchy.Snapshot) error {
	data, err := snap.MarshalState()
	if err != nil {
		return err
	}
	return r.store.write(ctx, join(snap.RootID, r.stateFile), data)
}

// ReadState loads the captured baseline of a root
func (r *SnapshotRepository) ReadState(ctx context.Context, rootID string) (*hierarchy.Snapshot, error) {
	rel := join(rootID, r.stateFile)
	ok, err := r.store.exists(ctx, rel)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStateNotFound, rel)
	}
	data, err := r.store.readURL(ctx, rel)
	if err != nil {
		return nil, err
	}
	snap, err := hierarchy.UnmarshalState(data)
	if err != nil {
		return nil, err
	}
	if snap.RootID != rootID {
		return nil, fmt.Errorf("state file %s belongs to root %s", rel, snap.RootID)
	}
	return snap, nil
}

// WriteBaseline records logical path -> directly attached policy names
func (r *SnapshotRepository) WriteBaseline(ctx context.Context, rootID string, baseline map[string][]string) error {
	return r.store.writeYAML(ctx, join(rootID, hierarchy.InitialStateFile), baseline)
}

// ReadBaseline loads the policy baseline captured by WriteBaseline
func (r *SnapshotRepository) ReadBaseline(ctx context.Context, rootID string) (map[string][]string, error) {
	rel := join(rootID, hierarchy.InitialStateFile)
	ok, err := r.store.exists(ctx, rel)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBaselineNotFound, rel)
	}
	data, err := r.store.readURL(ctx, rel)
	if err != nil {
		return nil, err
	}
	baseline := make(map[string][]string)
	if err := yaml.Unmarshal(data, &baseline); err != nil {
		return nil, fmt.Errorf("parse %s: %w", rel, err)
	}
	return baseline, nil
}
