package storage_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/tidwall/gjson"

	"github.com/luma/imubridge/storage"
)

var _ = Describe("storage / InmemoryStore", func() {
	Describe("Close()", func() {
		It("does not panic when closed twice", func() {
			store := storage.NewInmemoryStore()
			defer store.Close()

			Expect(func() { store.Close() }).NotTo(Panic())
			Expect(func() { store.Close() }).NotTo(Panic())
		})

		It("closes listener channels", func() {
			store := storage.NewInmemoryStore()
			updates := store.ListenToUpdates()

			Expect(store.Close()).To(Succeed())
			Eventually(updates).Should(BeClosed())
		})

		It("refuses writes once closed", func() {
			store := storage.NewInmemoryStore()
			Expect(store.Close()).To(Succeed())

			err := store.Set(context.Background(), []byte("yaw"), 1.5)
			Expect(err).To(MatchError(storage.ErrStoreClosed))
		})
	})

	It("an empty inmemory store equals {}", func() {
		store := storage.NewInmemoryStore()
		defer store.Close()

		value, err := store.Backup()
		Expect(err).To(Succeed())
		Expect(string(value)).To(Equal(`{}`))
	})

	Describe("Set() / Get()", func() {
		It("can read a key that is written", func() {
			store := storage.NewInmemoryStore()
			defer store.Close()

			err := store.Set(context.Background(), []byte("supply_voltage"), 5.0)
			Expect(err).To(Succeed())

			Expect(store.Get(context.Background(), []byte("supply_voltage"))).To(Equal([]byte(`5`)))

			err = store.Set(context.Background(), []byte("roll"), 7.5)
			Expect(err).To(Succeed())

			value, err := store.Backup()
			Expect(err).To(Succeed())
			Expect(string(value)).To(Equal(`{"supply_voltage":5,"roll":7.5}`))
		})

		It("returns ErrKeyNotFound for unknown keys", func() {
			store := storage.NewInmemoryStore()
			defer store.Close()

			_, err := store.Get(context.Background(), []byte("pitch"))
			Expect(err).To(MatchError(storage.ErrKeyNotFound))
		})

		It("overwrites a key in place", func() {
			store := storage.NewInmemoryStore()
			defer store.Close()

			Expect(store.Set(context.Background(), []byte("yaw"), 15.0)).To(Succeed())
			Expect(store.Set(context.Background(), []byte("yaw"), -10.5)).To(Succeed())

			Expect(store.Get(context.Background(), []byte("yaw"))).To(Equal([]byte(`-10.5`)))
		})

		It("sends on the update channel when values are set", func() {
			store := storage.NewInmemoryStore()
			defer store.Close()

			updateChan := store.ListenToUpdates()
			err := store.Set(context.Background(), []byte("env_temperature"), 25.0)
			Expect(err).To(Succeed())

			update, ok := <-updateChan
			Expect(ok).To(BeTrue())
			Expect(update).To(Equal(&storage.Update{
				Key:   []byte("env_temperature"),
				Value: []byte(`25`),
			}))
		})

		It("does not block when a listener falls behind", func() {
			store := storage.NewInmemoryStore()
			defer store.Close()

			store.ListenToUpdates()

			for i := 0; i < storage.UpdateBufferSize*2; i++ {
				Expect(store.Set(context.Background(), []byte("yaw"), float64(i))).To(Succeed())
			}
		})
	})

	Describe("SetAll()", func() {
		entries := func(v float64) []storage.Entry {
			return []storage.Entry{
				{Key: []byte("supply_voltage"), Value: v},
				{Key: []byte("env_temperature"), Value: v},
				{Key: []byte("yaw"), Value: v},
				{Key: []byte("pitch"), Value: v},
				{Key: []byte("roll"), Value: v},
			}
		}

		It("writes every entry and sends a single update", func() {
			store := storage.NewInmemoryStore()
			defer store.Close()

			updateChan := store.ListenToUpdates()
			Expect(store.SetAll(context.Background(), entries(1))).To(Succeed())

			doc := `{"supply_voltage":1,"env_temperature":1,"yaw":1,"pitch":1,"roll":1}`
			Expect(store.Backup()).To(MatchJSON(doc))

			update, ok := <-updateChan
			Expect(ok).To(BeTrue())
			Expect(update.Key).To(BeEmpty())
			Expect(update.Value).To(MatchJSON(doc))
			Consistently(updateChan, 50*time.Millisecond).ShouldNot(Receive())
		})

		It("never exposes a partly written batch", func() {
			store := storage.NewInmemoryStore()
			defer store.Close()

			Expect(store.SetAll(context.Background(), entries(1))).To(Succeed())

			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				for n := 0; n < 5000; n++ {
					Expect(store.SetAll(context.Background(), entries(float64(n%2+1)))).To(Succeed())
				}
			}()

			torn := 0
			for n := 0; n < 5000; n++ {
				doc, err := store.Backup()
				Expect(err).To(Succeed())

				first := gjson.GetBytes(doc, "supply_voltage").Float()
				for _, key := range []string{"env_temperature", "yaw", "pitch", "roll"} {
					if gjson.GetBytes(doc, key).Float() != first {
						torn++
						break
					}
				}
			}
			<-done

			Expect(torn).To(BeZero())
		})

		It("refuses writes once closed", func() {
			store := storage.NewInmemoryStore()
			Expect(store.Close()).To(Succeed())

			Expect(store.SetAll(context.Background(), entries(1))).To(MatchError(storage.ErrStoreClosed))
		})
	})

	Describe("StopListening()", func() {
		It("closes and forgets the channel", func() {
			store := storage.NewInmemoryStore()
			defer store.Close()

			updates := store.ListenToUpdates()
			store.StopListening(updates)
			Eventually(updates).Should(BeClosed())

			Expect(store.Set(context.Background(), []byte("yaw"), 1.0)).To(Succeed())
		})
	})

	Describe("Restore()", func() {
		It("replaces the document", func() {
			store := storage.NewInmemoryStore()
			defer store.Close()

			Expect(store.Restore([]byte(`{"pitch":-10}`))).To(Succeed())
			Expect(store.Get(context.Background(), []byte("pitch"))).To(Equal([]byte(`-10`)))
		})

		It("rejects invalid JSON", func() {
			store := storage.NewInmemoryStore()
			defer store.Close()

			Expect(store.Restore([]byte(`{"pitch":`))).NotTo(Succeed())
		})
	})
})
