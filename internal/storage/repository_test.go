package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/openpantry/pantryscan/internal/model"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := New(context.Background(), ":memory:", logger)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCreateUserAndLookup(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, "pat@example.com", "pat", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}
	if user.ID == 0 {
		t.Fatalf("user id not assigned")
	}

	got, err := repo.GetUserByEmail(ctx, "pat@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error: %v", err)
	}
	if got.ID != user.ID || got.Username != "pat" || got.PasswordHash != "hash" {
		t.Fatalf("GetUserByEmail() = %+v", got)
	}

	if _, err := repo.CreateUser(ctx, "pat@example.com", "other", "hash2"); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("duplicate email error = %v, want ErrDuplicateEmail", err)
	}

	if _, err := repo.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user error = %v, want ErrNotFound", err)
	}
}

func TestSearchUsersMatchesEmailAndUsername(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	repo.CreateUser(ctx, "alex@example.com", "alex", "h")
	repo.CreateUser(ctx, "sam@example.com", "sammy", "h")

	users, err := repo.SearchUsers(ctx, "sam")
	if err != nil {
		t.Fatalf("SearchUsers() error: %v", err)
	}
	if len(users) != 1 || users[0].Username != "sammy" {
		t.Fatalf("SearchUsers() = %+v", users)
	}
}

func TestGetOrCreateItemIsIdempotentPerBarcode(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	first, created, err := repo.GetOrCreateItem(ctx, model.Item{Barcode: "036000291452", Title: "Milk", Category: model.CategoryDairy})
	if err != nil {
		t.Fatalf("GetOrCreateItem() error: %v", err)
	}
	if !created || first.ID == 0 {
		t.Fatalf("first create: created=%v id=%d", created, first.ID)
	}

	second, created, err := repo.GetOrCreateItem(ctx, model.Item{Barcode: "036000291452", Title: "Different Title"})
	if err != nil {
		t.Fatalf("second GetOrCreateItem() error: %v", err)
	}
	if created {
		t.Fatalf("second create reported created=true")
	}
	if second.ID != first.ID || second.Title != "Milk" {
		t.Fatalf("existing item not returned: %+v", second)
	}

	byCode, err := repo.GetItemByBarcode(ctx, "036000291452")
	if err != nil || byCode.ID != first.ID {
		t.Fatalf("GetItemByBarcode() = %+v, %v", byCode, err)
	}
	byID, err := repo.GetItemByID(ctx, first.ID)
	if err != nil || byID.Barcode != "036000291452" {
		t.Fatalf("GetItemByID() = %+v, %v", byID, err)
	}
}

func TestAddToUserIncrementsQuantity(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	user, _ := repo.CreateUser(ctx, "pat@example.com", "pat", "h")
	item, _, _ := repo.GetOrCreateItem(ctx, model.Item{Barcode: "1", Title: "Beans"})
	location, created, err := repo.GetOrCreateLocation(ctx, user.ID, "Pantry")
	if err != nil || !created {
		t.Fatalf("GetOrCreateLocation() = %+v created=%v err=%v", location, created, err)
	}

	quantity, err := repo.AddToUser(ctx, user.ID, item.ID, location.ID)
	if err != nil || quantity != 1 {
		t.Fatalf("first AddToUser() = %d, %v", quantity, err)
	}
	quantity, err = repo.AddToUser(ctx, user.ID, item.ID, location.ID)
	if err != nil || quantity != 2 {
		t.Fatalf("second AddToUser() = %d, %v", quantity, err)
	}

	entries, err := repo.ListInventory(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListInventory() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("inventory entries = %d, want 1", len(entries))
	}
	if entries[0].Quantity != 2 || entries[0].Location != "Pantry" || entries[0].Item.Title != "Beans" {
		t.Fatalf("entry = %+v", entries[0])
	}
}

func TestLocationsAreScopedPerUser(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	alice, _ := repo.CreateUser(ctx, "alice@example.com", "alice", "h")
	bob, _ := repo.CreateUser(ctx, "bob@example.com", "bob", "h")

	aliceLoc, _, err := repo.GetOrCreateLocation(ctx, alice.ID, "Pantry")
	if err != nil {
		t.Fatalf("alice location: %v", err)
	}
	// Same name for another user is a distinct row.
	bobLoc, created, err := repo.GetOrCreateLocation(ctx, bob.ID, "Pantry")
	if err != nil || !created {
		t.Fatalf("bob location: created=%v err=%v", created, err)
	}
	if aliceLoc.ID == bobLoc.ID {
		t.Fatalf("locations shared across users")
	}

	// Existing name for the same user returns the same row.
	again, created, err := repo.GetOrCreateLocation(ctx, alice.ID, "Pantry")
	if err != nil || created || again.ID != aliceLoc.ID {
		t.Fatalf("repeat location = %+v created=%v err=%v", again, created, err)
	}

	if _, err := repo.GetLocation(ctx, alice.ID, bobLoc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-user GetLocation error = %v, want ErrNotFound", err)
	}

	locations, err := repo.ListLocations(ctx, alice.ID)
	if err != nil || len(locations) != 1 {
		t.Fatalf("ListLocations() = %+v, %v", locations, err)
	}
}

func TestScansInsertAndListRecent(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	user, _ := repo.CreateUser(ctx, "pat@example.com", "pat", "h")

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		scan := model.Scan{
			ID:        string(rune('a' + i)),
			UserID:    user.ID,
			Barcode:   "1",
			Detected:  true,
			Source:    model.ScanSourceUpload,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.InsertScan(ctx, scan); err != nil {
			t.Fatalf("InsertScan() error: %v", err)
		}
	}

	scans, err := repo.ListRecentScans(ctx, user.ID, 2)
	if err != nil {
		t.Fatalf("ListRecentScans() error: %v", err)
	}
	if len(scans) != 2 {
		t.Fatalf("scans = %d, want 2", len(scans))
	}
	if !scans[0].CreatedAt.After(scans[1].CreatedAt) {
		t.Fatalf("scans not newest-first: %v then %v", scans[0].CreatedAt, scans[1].CreatedAt)
	}
}

func TestGetOrCreateBrandDeduplicates(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	first, err := repo.GetOrCreateBrand(ctx, "DairyCo")
	if err != nil {
		t.Fatalf("GetOrCreateBrand() error: %v", err)
	}
	second, err := repo.GetOrCreateBrand(ctx, "DairyCo")
	if err != nil {
		t.Fatalf("second GetOrCreateBrand() error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("brand duplicated: %d vs %d", first.ID, second.ID)
	}
}

func TestGetOrCreateManufacturerDeduplicates(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	first, err := repo.GetOrCreateManufacturer(ctx, "DairyCo Plants")
	if err != nil {
		t.Fatalf("GetOrCreateManufacturer() error: %v", err)
	}
	second, err := repo.GetOrCreateManufacturer(ctx, "DairyCo Plants")
	if err != nil {
		t.Fatalf("second GetOrCreateManufacturer() error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("manufacturer duplicated: %d vs %d", first.ID, second.ID)
	}
}
