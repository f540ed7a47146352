package acl

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/core/domain/aggregates/kayttaja"
	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
	"github.com/iota-uz/varda/pkg/cache"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/metrics"
	"github.com/iota-uz/varda/pkg/repo"
)

// RolePolicy is the module-level gate consulted before any object lookup:
// may a role perform this action on this resource class at all. Satisfied
// by authz.Service.
type RolePolicy interface {
	CheckAny(ctx context.Context, subjects []string, object, action string) (bool, error)
}

// Index is the permission index service. ACL writes always happen inside
// the caller's business transaction; cache invalidation is process-local
// and tolerates one TTL of staleness on other workers.
type Index struct {
	log         *logrus.Entry
	visible     cache.VisibleIDs
	policy      RolePolicy
	m           *metrics.Metrics
	umbrellaOID string
}

func NewIndex(log *logrus.Logger, visible cache.VisibleIDs, policy RolePolicy, umbrellaOID string) *Index {
	return &Index{
		log:         log.WithField("component", "acl"),
		visible:     visible,
		policy:      policy,
		m:           metrics.Use(),
		umbrellaOID: umbrellaOID,
	}
}

// policyObjects qualifies each content type with its module for the role
// policy, whose rules are written per module class.
var policyObjects = map[string]string{
	"organisaatio":           "topology.organisaatio",
	"toimipaikka":            "topology.toimipaikka",
	"kielipainotus":          "topology.kielipainotus",
	"toiminnallinenpainotus": "topology.toiminnallinenpainotus",
	"henkilo":                "henkilo.henkilo",
	"lapsi":                  "varhaiskasvatus.lapsi",
	"varhaiskasvatuspaatos":  "varhaiskasvatus.varhaiskasvatuspaatos",
	"varhaiskasvatussuhde":   "varhaiskasvatus.varhaiskasvatussuhde",
	"maksutieto":             "varhaiskasvatus.maksutieto",
	"huoltajuussuhde":        "varhaiskasvatus.huoltajuussuhde",
	"tyontekija":             "henkilosto.tyontekija",
	"palvelussuhde":          "henkilosto.palvelussuhde",
	"tyoskentelypaikka":      "henkilosto.tyoskentelypaikka",
	"pidempipoissaolo":       "henkilosto.pidempipoissaolo",
	"taydennyskoulutus":      "henkilosto.taydennyskoulutus",
}

func policyObject(contentType string) string {
	if obj, ok := policyObjects[contentType]; ok {
		return obj
	}
	return contentType
}

const (
	selectGroupRowsQuery = `
		SELECT group_name, verb FROM group_object_permissions
		WHERE content_type = $1 AND object_id = $2
		ORDER BY group_name, verb`

	deleteGroupRowQuery = `
		DELETE FROM group_object_permissions
		WHERE group_name = $1 AND content_type = $2 AND object_id = $3 AND verb = $4`

	insertGroupRowQuery = `
		INSERT INTO group_object_permissions (group_name, content_type, object_id, verb)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`

	dropGroupRowsQuery = `
		DELETE FROM group_object_permissions
		WHERE content_type = $1 AND object_id = $2
		RETURNING group_name`

	dropUserRowsQuery = `
		DELETE FROM user_object_permissions
		WHERE content_type = $1 AND object_id = $2`

	insertUserRowQuery = `
		INSERT INTO user_object_permissions (kayttaja_id, content_type, object_id, verb)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`

	deleteUserRowsQuery = `
		DELETE FROM user_object_permissions
		WHERE kayttaja_id = $1 AND content_type = $2 AND object_id = $3`

	userPermitsQuery = `
		SELECT 1 FROM user_object_permissions
		WHERE kayttaja_id = $1 AND content_type = $2 AND object_id = $3 AND verb = $4`

	groupPermitsQuery = `
		SELECT 1 FROM group_object_permissions
		WHERE group_name = ANY($1) AND content_type = $2 AND object_id = $3 AND verb = $4`

	visibleIDsQuery = `
		SELECT DISTINCT object_id FROM (
			SELECT object_id FROM group_object_permissions
			WHERE group_name = ANY($1) AND content_type = $2 AND verb = 'view'
			UNION ALL
			SELECT object_id FROM user_object_permissions
			WHERE kayttaja_id = $3 AND content_type = $2 AND verb = 'view'
		) ids
		ORDER BY object_id`
)

// Apply projects the entity's ACL rows, replacing whatever group rows are
// stored. Diff-based so rotation churn stays proportional to the actual
// permission change.
func (x *Index) Apply(ctx context.Context, ref Ref, proj Projection) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	existing, err := x.readGroupRows(ctx, tx, ref)
	if err != nil {
		return err
	}
	target := RowsFor(proj)
	toInsert, toDelete := DiffRows(existing, target)

	touched := make(map[string]struct{})
	for _, row := range toDelete {
		if _, err := tx.Exec(ctx, deleteGroupRowQuery, row.Group.Name(), ref.ContentType, ref.ObjectID, string(row.Verb)); err != nil {
			return fmt.Errorf("acl delete row: %w", err)
		}
		touched[row.Group.Name()] = struct{}{}
	}
	for _, row := range toInsert {
		if _, err := tx.Exec(ctx, insertGroupRowQuery, row.Group.Name(), ref.ContentType, ref.ObjectID, string(row.Verb)); err != nil {
			return fmt.Errorf("acl insert row: %w", err)
		}
		touched[row.Group.Name()] = struct{}{}
	}

	if len(toInsert) > 0 {
		x.m.ACLRowsWritten.WithLabelValues(ref.ContentType, "insert").Add(float64(len(toInsert)))
	}
	if len(toDelete) > 0 {
		x.m.ACLRowsWritten.WithLabelValues(ref.ContentType, "delete").Add(float64(len(toDelete)))
	}
	x.invalidate(ctx, touched)
	return nil
}

// Extend inserts the projection's rows without touching rows already
// stored. Person read-through accumulates scopes this way: every entity
// referencing the person extends, none may shrink another's grant.
func (x *Index) Extend(ctx context.Context, ref Ref, proj Projection) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	target := RowsFor(proj)
	touched := make(map[string]struct{})
	for _, row := range target {
		if _, err := tx.Exec(ctx, insertGroupRowQuery, row.Group.Name(), ref.ContentType, ref.ObjectID, string(row.Verb)); err != nil {
			return fmt.Errorf("acl extend row: %w", err)
		}
		touched[row.Group.Name()] = struct{}{}
	}
	if len(target) > 0 {
		x.m.ACLRowsWritten.WithLabelValues(ref.ContentType, "insert").Add(float64(len(target)))
	}
	x.invalidate(ctx, touched)
	return nil
}

// Drop removes every ACL row of the entity; called on delete.
func (x *Index) Drop(ctx context.Context, ref Ref) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	rows, err := tx.Query(ctx, dropGroupRowsQuery, ref.ContentType, ref.ObjectID)
	if err != nil {
		return fmt.Errorf("acl drop group rows: %w", err)
	}
	touched := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		touched[name] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, dropUserRowsQuery, ref.ContentType, ref.ObjectID); err != nil {
		return fmt.Errorf("acl drop user rows: %w", err)
	}
	x.invalidate(ctx, touched)
	return nil
}

// GrantUser writes principal-specific rows; used sparingly, only where an
// ACL applies to one person.
func (x *Index) GrantUser(ctx context.Context, kayttajaID int64, ref Ref, verbs ...permission.Verb) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	for _, v := range verbs {
		if _, err := tx.Exec(ctx, insertUserRowQuery, kayttajaID, ref.ContentType, ref.ObjectID, string(v)); err != nil {
			return fmt.Errorf("acl grant user: %w", err)
		}
	}
	return nil
}

func (x *Index) RevokeUser(ctx context.Context, kayttajaID int64, ref Ref) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, deleteUserRowsQuery, kayttajaID, ref.ContentType, ref.ObjectID); err != nil {
		return fmt.Errorf("acl revoke user: %w", err)
	}
	return nil
}

// Permits answers the request-time question in O(1) lookups: admin
// bypass, then a user row, then a group row for any of the principal's
// groups. Purely additive; there is no deny precedence.
func (x *Index) Permits(ctx context.Context, k kayttaja.Kayttaja, ref Ref, verb permission.Verb) (bool, error) {
	x.m.AuthzChecked.WithLabelValues(ref.ContentType, string(verb)).Inc()

	if k.IsAdmin(x.umbrellaOID) {
		return true, nil
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}

	var one int
	err = tx.QueryRow(ctx, userPermitsQuery, k.ID(), ref.ContentType, ref.ObjectID, string(verb)).Scan(&one)
	if err == nil {
		return true, nil
	}
	if !noRows(err) {
		return false, fmt.Errorf("acl user check: %w", err)
	}

	// The role policy gates the group path only: user rows are explicit
	// per-principal grants and stand on their own.
	if x.policy != nil {
		ok, err := x.policy.CheckAny(ctx, permission.RoleNames(k.Groups()), policyObject(ref.ContentType), string(verb))
		if err != nil {
			return false, err
		}
		if !ok {
			x.m.AuthzDenied.WithLabelValues(ref.ContentType, string(verb)).Inc()
			return false, nil
		}
	}

	names := permission.GroupNames(k.Groups())
	if len(names) == 0 {
		x.m.AuthzDenied.WithLabelValues(ref.ContentType, string(verb)).Inc()
		return false, nil
	}
	err = tx.QueryRow(ctx, groupPermitsQuery, names, ref.ContentType, ref.ObjectID, string(verb)).Scan(&one)
	if err == nil {
		return true, nil
	}
	if !noRows(err) {
		return false, fmt.Errorf("acl group check: %w", err)
	}
	x.m.AuthzDenied.WithLabelValues(ref.ContentType, string(verb)).Inc()
	return false, nil
}

// VisibleIDs lists every object id of the content type the principal may
// view, memoized per principal until an ACL change touches their groups.
func (x *Index) VisibleIDs(ctx context.Context, k kayttaja.Kayttaja, contentType string) ([]int64, error) {
	names := permission.GroupNames(k.Groups())
	if ids, ok := x.visible.Get(ctx, k.OID(), contentType); ok {
		return ids, nil
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, visibleIDsQuery, names, contentType, k.ID())
	if err != nil {
		return nil, fmt.Errorf("acl visible ids: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, 64)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	x.visible.Set(ctx, k.OID(), contentType, names, ids)
	return ids, nil
}

// InvalidatePrincipal drops the principal's memoized visibility; called
// when group membership changes.
func (x *Index) InvalidatePrincipal(ctx context.Context, principalOID string) {
	x.visible.InvalidatePrincipal(ctx, principalOID)
}

func (x *Index) readGroupRows(ctx context.Context, tx repo.Tx, ref Ref) ([]Row, error) {
	rows, err := tx.Query(ctx, selectGroupRowsQuery, ref.ContentType, ref.ObjectID)
	if err != nil {
		return nil, fmt.Errorf("acl read rows: %w", err)
	}
	defer rows.Close()

	out := make([]Row, 0, 16)
	for rows.Next() {
		var name, verb string
		if err := rows.Scan(&name, &verb); err != nil {
			return nil, err
		}
		group, err := permission.ParseGroupName(name)
		if err != nil {
			// Rows written by an older release with a retired role are
			// skipped rather than failing every projection.
			x.log.WithField("group", name).Warn("skipping unparseable group row")
			continue
		}
		v, err := permission.ParseVerb(verb)
		if err != nil {
			continue
		}
		out = append(out, Row{Group: group, Verb: v})
	}
	return out, rows.Err()
}

func (x *Index) invalidate(ctx context.Context, touched map[string]struct{}) {
	if len(touched) == 0 {
		return
	}
	names := make([]string, 0, len(touched))
	for name := range touched {
		names = append(names, name)
	}
	x.visible.InvalidateGroups(ctx, names)
}

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
